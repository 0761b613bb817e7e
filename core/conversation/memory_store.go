package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process pending-action store. Suited to a single
// instance; multi-instance deployments should use RedisStore so a user's
// workflow survives being routed to a different process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]PendingAction

	// now is replaceable in tests.
	now func() time.Time
}

// NewMemoryStore creates a store with the given TTL; zero means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: map[string]PendingAction{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, ErrNoPending
	}
	if entry.Expired(s.ttl, s.now()) {
		delete(s.entries, userID)
		return nil, ErrNoPending
	}
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, action *PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[action.UserID] = *action
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for userID, entry := range s.entries {
		if entry.Expired(s.ttl, now) {
			delete(s.entries, userID)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
