package resource

import "context"

// Store defines persistence for resources.
type Store interface {
	// Get returns the resource with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Resource, error)

	// GetByLegacyID returns the resource that carried the given integer ID
	// before the schema migration, or ErrNotFound.
	GetByLegacyID(ctx context.Context, legacyID int64) (*Resource, error)

	// List returns all resources.
	List(ctx context.Context) ([]Resource, error)

	// ListByOwner returns all resources owned by the given user.
	ListByOwner(ctx context.Context, ownerID string) ([]Resource, error)

	// Save creates or updates a resource.
	Save(ctx context.Context, res *Resource) error

	// Delete removes a resource. Tuple cleanup is the caller's concern.
	Delete(ctx context.Context, id string) error
}
