package tuple

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store defines the operations custodian needs from a tuple store.
// Client implements it against the external HTTP store; MemoryStore
// implements it in-process for tests and single-instance deployments.
type Store interface {
	// Check reports whether the subject has the relation on the object,
	// resolving group-membership indirection.
	Check(ctx context.Context, t Tuple) (bool, error)

	// Read returns tuples matching the filter, one page at a time. An empty
	// continuation starts from the beginning; a non-empty returned
	// continuation means more pages remain.
	Read(ctx context.Context, f Filter, continuation string) ([]Tuple, string, error)

	// Write upserts and deletes tuples. Writes are idempotent by contract:
	// adding an existing tuple or deleting a missing one succeeds. A batch
	// that fails for other reasons is retried tuple by tuple; tuples that
	// still fail are reported via PartialFailure.
	Write(ctx context.Context, writes, deletes []Tuple) error
}

// errBadContinuation reports a continuation token the store cannot resume from.
var errBadContinuation = errors.New("bad continuation token")

// TransportError wraps a network or protocol failure talking to the store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tuple: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PartialFailure reports tuples that could not be written or deleted after
// the per-tuple retry. The rest of the batch has been applied.
type PartialFailure struct {
	Writes  []Tuple
	Deletes []Tuple
	Errs    []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("tuple: partial failure: %d writes and %d deletes unresolved",
		len(e.Writes), len(e.Deletes))
}

// AsPartialFailure extracts a PartialFailure from an error chain.
func AsPartialFailure(err error) (*PartialFailure, bool) {
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}

// duplicateSentinels mark error bodies the store emits when an added tuple
// is already present. The contract folds these into success.
var duplicateSentinels = []string{
	"duplicate",
	"already exists",
}

// missingSentinels mark error bodies the store emits when a deleted tuple
// was already gone. Also success, but only for delete-only requests.
var missingSentinels = []string{
	"does not exist",
	"not found",
	"cannot delete",
}

// isIdempotentNoop reports whether an error body describes a write that was
// already applied. deleteOnly widens the match to missing-tuple sentinels.
func isIdempotentNoop(body string, deleteOnly bool) bool {
	lower := strings.ToLower(body)
	for _, s := range duplicateSentinels {
		if strings.Contains(lower, s) {
			return true
		}
	}
	if deleteOnly {
		for _, s := range missingSentinels {
			if strings.Contains(lower, s) {
				return true
			}
		}
	}
	return false
}
