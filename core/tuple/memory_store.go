package tuple

import (
	"context"
	"strconv"
	"sync"
)

// defaultPageSize bounds pages returned by MemoryStore.Read.
const defaultPageSize = 50

// MemoryStore provides an in-memory implementation of Store with the same
// contract as the external store: duplicate-tolerant writes, paged reads
// with a continuation token, and checks that resolve one level of
// group-membership indirection. Useful for testing and single-instance
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	tuples   []Tuple
	pageSize int
}

// NewMemoryStore creates a new in-memory tuple store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pageSize: defaultPageSize}
}

// SetPageSize overrides the read page size. Values < 1 are ignored.
func (s *MemoryStore) SetPageSize(n int) {
	if n >= 1 {
		s.pageSize = n
	}
}

// Check reports whether the subject has the relation on the object, either
// through a direct tuple or through a group-membership grant.
func (s *MemoryStore) Check(ctx context.Context, t Tuple) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.tuples {
		if existing == t {
			return true, nil
		}
	}

	// Userset expansion: (group:G#member, rel, obj) grants rel to every
	// subject holding (subject, member, group:G).
	for _, grant := range s.tuples {
		if grant.Relation != t.Relation || grant.Object != t.Object || !grant.Subject.IsUserset() {
			continue
		}
		membership := Tuple{
			Subject:  t.Subject,
			Relation: grant.Subject.Relation,
			Object:   grant.Subject.Object,
		}
		for _, existing := range s.tuples {
			if existing == membership {
				return true, nil
			}
		}
	}

	return false, nil
}

// Read returns tuples matching the filter one page at a time. The
// continuation token is an offset into the store's current tuple order.
func (s *MemoryStore) Read(ctx context.Context, f Filter, continuation string) ([]Tuple, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset := 0
	if continuation != "" {
		n, err := strconv.Atoi(continuation)
		if err != nil || n < 0 {
			return nil, "", &TransportError{Op: "read", Err: errBadContinuation}
		}
		offset = n
	}

	var page []Tuple
	for i := offset; i < len(s.tuples); i++ {
		if !f.Matches(s.tuples[i]) {
			continue
		}
		page = append(page, s.tuples[i])
		if len(page) == s.pageSize && i+1 < len(s.tuples) {
			return page, strconv.Itoa(i + 1), nil
		}
	}
	return page, "", nil
}

// Write applies adds and deletes. Adding an existing tuple or deleting a
// missing one is a no-op, matching the external store's contract.
func (s *MemoryStore) Write(ctx context.Context, writes, deletes []Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range writes {
		exists := false
		for _, existing := range s.tuples {
			if existing == t {
				exists = true
				break
			}
		}
		if !exists {
			s.tuples = append(s.tuples, t)
		}
	}

	for _, t := range deletes {
		for i, existing := range s.tuples {
			if existing == t {
				s.tuples = append(s.tuples[:i], s.tuples[i+1:]...)
				break
			}
		}
	}

	return nil
}

// Len returns the number of stored tuples.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tuples)
}

// All returns a copy of every stored tuple, for test assertions.
func (s *MemoryStore) All() []Tuple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tuple, len(s.tuples))
	copy(out, s.tuples)
	return out
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
