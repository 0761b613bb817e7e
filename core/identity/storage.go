package identity

import "context"

// Store defines persistence for users.
// Implementations live in the custgorm package; tests use in-memory fakes.
type Store interface {
	// Get returns the user with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*User, error)

	// List returns all users.
	List(ctx context.Context) ([]User, error)

	// Save creates or updates a user.
	Save(ctx context.Context, user *User) error

	// Delete removes a user. Deleting a user leaves its tuples behind;
	// callers must follow up with a ghost sweep.
	Delete(ctx context.Context, id string) error
}
