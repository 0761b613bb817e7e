package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis so a user's workflow survives process
// restarts and follows the user across instances. The TTL rides on the key
// itself, so Sweep has nothing to do beyond reporting; Redis evicts expired
// entries on its own.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed pending-action store. A zero ttl
// means DefaultTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "custodian:pending:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*PendingAction, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("redis pending: get failed: %w", err)
	}

	var action PendingAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("redis pending: corrupt entry for %s: %w", userID, err)
	}
	// The Redis expiry is authoritative, but the clock check keeps behavior
	// identical to MemoryStore when TTLs are tightened at runtime.
	if action.Expired(s.ttl, time.Now()) {
		s.client.Del(ctx, s.key(userID))
		return nil, ErrNoPending
	}
	return &action, nil
}

func (s *RedisStore) Put(ctx context.Context, action *PendingAction) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("redis pending: encode failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(action.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis pending: put failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis pending: delete failed: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires keys server-side.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
