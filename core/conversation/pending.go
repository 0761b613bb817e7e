package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/custodian-sh/custodian/core/resource"
)

// Kind classifies what a pending workflow will do when it completes.
type Kind string

const (
	// KindCreate collects the field schema for a new resource.
	KindCreate Kind = "create"
	// KindConfirmDelete awaits a yes/no answer before deleting a resource.
	KindConfirmDelete Kind = "confirm_delete"
)

// DefaultTTL is how long a pending workflow survives without completing.
const DefaultTTL = 5 * time.Minute

// ErrNoPending is returned by stores when a user has no live workflow.
var ErrNoPending = errors.New("conversation: no pending action")

// PendingAction is one user's in-flight multi-step workflow. The zero Cursor
// points at the first unanswered schema field.
type PendingAction struct {
	UserID    string            `json:"user_id"`
	Kind      Kind              `json:"kind"`
	Category  resource.Category `json:"category,omitempty"`
	TargetID  string            `json:"target_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Cursor    int               `json:"cursor"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expired reports whether the action has outlived the TTL at the given time.
func (p *PendingAction) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.CreatedAt) >= ttl
}

// Store keeps at most one pending action per user. Put replaces any prior
// entry for the same user. Implementations enforce the TTL lazily on Get;
// the periodic sweep bounds memory for entries never read again.
type Store interface {
	Get(ctx context.Context, userID string) (*PendingAction, error)
	Put(ctx context.Context, action *PendingAction) error
	Delete(ctx context.Context, userID string) error
	Sweep(ctx context.Context) (int, error)
}
