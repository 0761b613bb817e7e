package access

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/custodian-sh/custodian/core/resource"
	"github.com/custodian-sh/custodian/core/tuple"
)

func seededStore(t *testing.T) *tuple.MemoryStore {
	t.Helper()
	store := tuple.NewMemoryStore()
	err := store.Write(context.Background(), []tuple.Tuple{
		tuple.Membership("viewer-user", "viewers"),
		tuple.Membership("editor-user", "editors"),
		tuple.GroupGrant("viewers", tuple.RelationViewer, "r1"),
		tuple.GroupGrant("editors", tuple.RelationEditor, "r1"),
	}, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestResolveOwner(t *testing.T) {
	r := NewResolver(seededStore(t))
	res := resource.Resource{ID: "r1", OwnerID: "alice"}

	caps, err := r.Resolve(context.Background(), "alice", res)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !caps.CanView || !caps.CanEdit || !caps.CanDelete {
		t.Errorf("owner capabilities = %+v, want all true", caps)
	}
}

func TestResolveViewerGrant(t *testing.T) {
	r := NewResolver(seededStore(t))
	res := resource.Resource{ID: "r1", OwnerID: "alice"}

	caps, err := r.Resolve(context.Background(), "viewer-user", res)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !caps.CanView || caps.CanEdit || caps.CanDelete {
		t.Errorf("viewer capabilities = %+v, want {true,false,false}", caps)
	}
}

func TestResolveEditorImpliesView(t *testing.T) {
	r := NewResolver(seededStore(t))
	res := resource.Resource{ID: "r1", OwnerID: "alice"}

	caps, err := r.Resolve(context.Background(), "editor-user", res)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !caps.CanView || !caps.CanEdit {
		t.Errorf("editor capabilities = %+v, want view and edit", caps)
	}
	if caps.CanDelete {
		t.Error("non-owner must not delete")
	}
}

func TestResolveStranger(t *testing.T) {
	r := NewResolver(seededStore(t))
	res := resource.Resource{ID: "r1", OwnerID: "alice"}

	caps, err := r.Resolve(context.Background(), "stranger", res)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if caps.CanView || caps.CanEdit || caps.CanDelete {
		t.Errorf("stranger capabilities = %+v, want none", caps)
	}
}

// countingStore tracks peak concurrency of checks.
type countingStore struct {
	*tuple.MemoryStore
	mu      sync.Mutex
	current int32
	peak    int32
}

func (c *countingStore) Check(ctx context.Context, tp tuple.Tuple) (bool, error) {
	cur := atomic.AddInt32(&c.current, 1)
	c.mu.Lock()
	if cur > c.peak {
		c.peak = cur
	}
	c.mu.Unlock()
	defer atomic.AddInt32(&c.current, -1)
	return c.MemoryStore.Check(ctx, tp)
}

func TestResolveAllBoundedAndAligned(t *testing.T) {
	store := &countingStore{MemoryStore: seededStore(t)}
	r := NewResolver(store, WithWorkers(2))

	resources := []resource.Resource{
		{ID: "r1", OwnerID: "alice"},
		{ID: "r1", OwnerID: "viewer-user"},
		{ID: "r1", OwnerID: "alice"},
		{ID: "r1", OwnerID: "alice"},
	}
	caps, err := r.ResolveAll(context.Background(), "viewer-user", resources)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(caps) != len(resources) {
		t.Fatalf("got %d results, want %d", len(caps), len(resources))
	}
	if !caps[1].CanDelete {
		t.Error("results misaligned: index 1 is owned by the caller")
	}
	if caps[0].CanDelete {
		t.Error("results misaligned: index 0 is not owned by the caller")
	}
	if store.peak > 2 {
		t.Errorf("peak concurrent checks = %d, want <= worker bound 2", store.peak)
	}
}

type failingStore struct{ tuple.Store }

func (f failingStore) Check(ctx context.Context, tp tuple.Tuple) (bool, error) {
	return false, &tuple.TransportError{Op: "check", Err: errors.New("unreachable")}
}

func TestResolveSurfacesTransportError(t *testing.T) {
	r := NewResolver(failingStore{})
	res := resource.Resource{ID: "r1", OwnerID: "alice"}

	if _, err := r.Resolve(context.Background(), "bob", res); err == nil {
		t.Fatal("expected transport error")
	}

	// The owner never touches the store, so even a dead store resolves.
	caps, err := r.Resolve(context.Background(), "alice", res)
	if err != nil || !caps.CanDelete {
		t.Errorf("owner short-circuit failed: %+v, %v", caps, err)
	}
}
