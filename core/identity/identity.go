// Package identity provides core user types for custodian.
//
// A user carries an opaque stable identifier and a role drawn from a fixed
// ordered set. Roles determine group membership in the tuple store: every
// active viewer, editor, or admin is represented by exactly one membership
// tuple in that role's group. Owner-role users are never grouped; their
// access rides on per-resource owner tuples.
//
// # Role Ordering
//
// Roles are totally ordered for permission comparisons:
//
//	owner > admin > editor > viewer
//
// Use Role.AtLeast to gate operations:
//
//	if caller.Role.AtLeast(identity.RoleAdmin) { ... }
package identity

import (
	"errors"
	"fmt"
	"time"
)

// Role is a user's position in the fixed role hierarchy.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// roleRanks orders roles for comparison. Higher ranks outrank lower ones.
var roleRanks = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// ErrUnknownRole is returned when parsing an unrecognized role name.
var ErrUnknownRole = errors.New("identity: unknown role")

// ErrNotFound is returned when a user does not exist in the store.
var ErrNotFound = errors.New("identity: user not found")

// ParseRole converts a role name to a Role, rejecting unknown names.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRanks[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether the role is one of the fixed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the role's position in the hierarchy. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r outranks or equals other.
func (r Role) AtLeast(other Role) bool {
	return roleRanks[r] >= roleRanks[other]
}

// GroupName returns the name of the group whose membership is derived from
// this role, or "" for roles without a group (owner).
func (r Role) GroupName() string {
	switch r {
	case RoleViewer:
		return "viewers"
	case RoleEditor:
		return "editors"
	case RoleAdmin:
		return "admins"
	default:
		return ""
	}
}

// GroupedRoles lists the roles represented by group membership tuples.
func GroupedRoles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin}
}

// User represents a provisioned user.
type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
