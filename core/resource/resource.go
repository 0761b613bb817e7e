// Package resource provides core types for user-created resources.
//
// A resource belongs to exactly one owner and carries a per-role visibility
// flag for each non-owner role. The flags are the relational projection of
// group-grant tuples in the external tuple store: a flag is true if and only
// if the corresponding group-membership grant tuple exists on the resource
// once reconciliation has run. The owner is never gated by a flag.
package resource

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/custodian-sh/custodian/core/identity"
)

// Category classifies resources and selects their conversational field schema.
type Category string

const (
	CategoryContact      Category = "contact"
	CategoryDocument     Category = "document"
	CategorySubscription Category = "subscription"
	CategoryEvent        Category = "event"
)

// ErrNotFound is returned when a resource does not exist in the store.
var ErrNotFound = errors.New("resource: not found")

// ErrUnknownCategory is returned for category names outside the fixed set.
var ErrUnknownCategory = errors.New("resource: unknown category")

// ParseCategory converts a category name to a Category, rejecting unknowns.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := schemas[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Categories lists the fixed category enumeration.
func Categories() []Category {
	return []Category{CategoryContact, CategoryDocument, CategorySubscription, CategoryEvent}
}

// JSON is a custom type for handling JSON payloads in various storages.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// Visibility holds the per-role visibility flags, one per non-owner role.
type Visibility struct {
	Admin  bool `json:"admin"`
	Editor bool `json:"editor"`
	Viewer bool `json:"viewer"`
}

// ForRole returns the flag for the given role. Owner and unknown roles are
// not flag-gated and report false.
func (v Visibility) ForRole(r identity.Role) bool {
	switch r {
	case identity.RoleAdmin:
		return v.Admin
	case identity.RoleEditor:
		return v.Editor
	case identity.RoleViewer:
		return v.Viewer
	default:
		return false
	}
}

// SetForRole sets the flag for the given role and reports whether the role
// carries a flag at all.
func (v *Visibility) SetForRole(r identity.Role, visible bool) bool {
	switch r {
	case identity.RoleAdmin:
		v.Admin = visible
	case identity.RoleEditor:
		v.Editor = visible
	case identity.RoleViewer:
		v.Viewer = visible
	default:
		return false
	}
	return true
}

// Resource represents a user-created resource.
type Resource struct {
	ID         string     `json:"id"`
	Category   Category   `json:"category"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	Payload    JSON       `json:"payload,omitempty"`
	Visibility Visibility `json:"visibility"`

	// LegacyID carries the integer identifier a resource had before the
	// schema migration to opaque IDs. Only the one-time tuple key rewrite
	// pass reads it.
	LegacyID *int64 `json:"legacy_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
