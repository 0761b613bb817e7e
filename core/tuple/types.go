// Package tuple provides the relationship-tuple model and the client for the
// external tuple store.
//
// A tuple is an atomic relation fact (subject, relation, object). Tuples are
// the external store's sole persisted fact; custodian's relational visibility
// flags are the intended projection that the reconcile package keeps faithful.
//
// Subjects are either users (user:alice), groups (group:viewers), or
// group-membership references (group:viewers#member, meaning "anyone who is
// a member of this group"). Objects are resources or groups. The design
// follows the Zanzibar model and the store speaks an OpenFGA-compatible
// HTTP/JSON protocol.
package tuple

import (
	"fmt"
	"strings"
)

// Object and subject types used by custodian.
const (
	TypeUser     = "user"
	TypeGroup    = "group"
	TypeResource = "resource"
)

// Relations used by custodian. Owner, editor, viewer, and admin relate
// subjects to resources; member relates users to groups.
const (
	RelationOwner  = "owner"
	RelationEditor = "editor"
	RelationViewer = "viewer"
	RelationAdmin  = "admin"
	RelationMember = "member"
)

// ObjectRef represents a typed reference to an object.
// Examples: "resource:2f1c...", "group:viewers", "user:alice"
type ObjectRef struct {
	Type string
	ID   string
}

// String returns the canonical string representation: "type:id"
func (o ObjectRef) String() string {
	return o.Type + ":" + o.ID
}

// SubjectRef represents a subject in a relationship tuple.
// A subject can be:
//   - A direct object reference: user:alice
//   - A userset reference: group:viewers#member (all members of a group)
type SubjectRef struct {
	Object   ObjectRef
	Relation string // set for usersets like "group:viewers#member"
}

// String returns the canonical string representation.
// Direct: "user:alice", Userset: "group:viewers#member"
func (s SubjectRef) String() string {
	if s.Relation == "" {
		return s.Object.String()
	}
	return s.Object.String() + "#" + s.Relation
}

// IsUserset returns true if this subject reference is a userset.
func (s SubjectRef) IsUserset() bool {
	return s.Relation != ""
}

// Tuple represents a relationship tuple: (subject, relation, object).
//
// Examples:
//   - user:alice owner resource:2f1c (Alice owns the resource)
//   - user:bob member group:viewers (Bob is in the viewers group)
//   - group:viewers#member viewer resource:2f1c (any viewer-group member may view)
type Tuple struct {
	Subject  SubjectRef
	Relation string
	Object   ObjectRef
}

// String returns the canonical tuple representation: "subject#relation@object"
func (t Tuple) String() string {
	return t.Subject.String() + "#" + t.Relation + "@" + t.Object.String()
}

// Key returns the wire representation of the tuple.
func (t Tuple) Key() Key {
	return Key{
		User:     t.Subject.String(),
		Relation: t.Relation,
		Object:   t.Object.String(),
	}
}

// Key is the wire form of a tuple: the external store calls the subject
// field "user" even when it holds a group or userset reference.
type Key struct {
	User     string `json:"user,omitempty"`
	Relation string `json:"relation,omitempty"`
	Object   string `json:"object,omitempty"`
}

// Tuple converts a fully-populated wire key back to a Tuple.
func (k Key) Tuple() (Tuple, error) {
	subj, err := ParseSubject(k.User)
	if err != nil {
		return Tuple{}, err
	}
	obj, err := ParseObject(k.Object)
	if err != nil {
		return Tuple{}, err
	}
	return Tuple{Subject: subj, Relation: k.Relation, Object: obj}, nil
}

// ParseObject parses a canonical "type:id" object string.
func ParseObject(s string) (ObjectRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return ObjectRef{}, fmt.Errorf("tuple: malformed object %q", s)
	}
	return ObjectRef{Type: typ, ID: id}, nil
}

// ParseSubject parses a canonical subject string, either "type:id" or the
// userset form "type:id#relation".
func ParseSubject(s string) (SubjectRef, error) {
	base, rel, _ := strings.Cut(s, "#")
	obj, err := ParseObject(base)
	if err != nil {
		return SubjectRef{}, fmt.Errorf("tuple: malformed subject %q", s)
	}
	return SubjectRef{Object: obj, Relation: rel}, nil
}

// UserSubject returns the subject reference for a user identity.
func UserSubject(userID string) SubjectRef {
	return SubjectRef{Object: ObjectRef{Type: TypeUser, ID: userID}}
}

// GroupMember returns the membership userset reference for a group.
func GroupMember(group string) SubjectRef {
	return SubjectRef{Object: ObjectRef{Type: TypeGroup, ID: group}, Relation: RelationMember}
}

// GroupObject returns the object reference for a group.
func GroupObject(group string) ObjectRef {
	return ObjectRef{Type: TypeGroup, ID: group}
}

// ResourceObject returns the object reference for a resource identity.
func ResourceObject(resourceID string) ObjectRef {
	return ObjectRef{Type: TypeResource, ID: resourceID}
}

// Membership returns the tuple placing a user in a group.
func Membership(userID, group string) Tuple {
	return Tuple{Subject: UserSubject(userID), Relation: RelationMember, Object: GroupObject(group)}
}

// Ownership returns the tuple making a user the owner of a resource.
func Ownership(userID, resourceID string) Tuple {
	return Tuple{Subject: UserSubject(userID), Relation: RelationOwner, Object: ResourceObject(resourceID)}
}

// GroupGrant returns the tuple granting a relation on a resource to every
// member of a group. A role-wide grant is always this single tuple, never
// one tuple per user.
func GroupGrant(group, relation, resourceID string) Tuple {
	return Tuple{Subject: GroupMember(group), Relation: relation, Object: ResourceObject(resourceID)}
}

// managedRelations are the relations custodian writes and reconciles.
var managedRelations = map[string]bool{
	RelationOwner:  true,
	RelationEditor: true,
	RelationViewer: true,
	RelationAdmin:  true,
	RelationMember: true,
}

// Managed reports whether the tuple's relation is one custodian reconciles.
func (t Tuple) Managed() bool {
	return managedRelations[t.Relation]
}

// Filter constrains a tuple read. Empty fields are wildcards; the zero
// Filter streams the entire store.
type Filter struct {
	Subject  string
	Relation string
	Object   string
}

// Matches reports whether the tuple satisfies the filter.
func (f Filter) Matches(t Tuple) bool {
	if f.Subject != "" && t.Subject.String() != f.Subject {
		return false
	}
	if f.Relation != "" && t.Relation != f.Relation {
		return false
	}
	if f.Object != "" && t.Object.String() != f.Object {
		return false
	}
	return true
}

// key returns the filter's wire form.
func (f Filter) key() *Key {
	if f.Subject == "" && f.Relation == "" && f.Object == "" {
		return nil
	}
	return &Key{User: f.Subject, Relation: f.Relation, Object: f.Object}
}
