package conversation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	start := time.Now()
	now := start
	store.now = func() time.Time { return now }
	ctx := context.Background()

	action := &PendingAction{UserID: "alice", Kind: KindCreate, CreatedAt: start}
	if err := store.Put(ctx, action); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := store.Get(ctx, "alice"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = start.Add(5*time.Minute + time.Second)
	if _, err := store.Get(ctx, "alice"); !errors.Is(err, ErrNoPending) {
		t.Fatalf("Get after expiry err = %v, want ErrNoPending", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	start := time.Now()
	now := start
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Put(ctx, &PendingAction{UserID: "old", CreatedAt: start})
	store.Put(ctx, &PendingAction{UserID: "fresh", CreatedAt: start.Add(3 * time.Minute)})

	now = start.Add(6 * time.Minute)
	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh entry swept: %v", err)
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	store.Put(ctx, &PendingAction{UserID: "alice", Kind: KindCreate, Cursor: 2, CreatedAt: time.Now()})
	store.Put(ctx, &PendingAction{UserID: "alice", Kind: KindConfirmDelete, TargetID: "r1", CreatedAt: time.Now()})

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != KindConfirmDelete || got.TargetID != "r1" {
		t.Fatalf("got %+v, want the later workflow", got)
	}
}
