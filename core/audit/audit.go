// Package audit provides best-effort recording of authorization decisions.
//
// Every permitted read or write is appended to the audit store. Recording is
// fire-and-forget: a failure to persist a record is logged and never
// propagated, since authorization enforcement must not be coupled to audit
// durability. The recorder is not part of the access-control decision.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action classifies the audited operation.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Record is one append-only audit entry.
type Record struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     Action    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store defines append-only persistence for audit records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
}

// saveTimeout bounds the detached persistence attempt.
const saveTimeout = 3 * time.Second

// Recorder appends audit records without blocking the caller.
type Recorder struct {
	store Store
	log   *zap.Logger
}

// NewRecorder creates a Recorder. A nil logger falls back to a no-op logger.
func NewRecorder(store Store, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, log: log}
}

// Record appends an audit entry asynchronously. Failures are routed to the
// logger; the caller is never delayed or failed.
func (r *Recorder) Record(actorID string, action Action, resourceID string) {
	rec := &Record{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		ResourceID: resourceID,
		CreatedAt:  time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := r.store.Save(ctx, rec); err != nil {
			r.log.Warn("audit record dropped",
				zap.String("actor_id", rec.ActorID),
				zap.String("action", string(rec.Action)),
				zap.Error(err),
			)
		}
	}()
}
