package reconcile

import (
	"context"
	"testing"

	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/tuple"
)

func TestSweepGhostsSoundness(t *testing.T) {
	users := &fakeUsers{users: []identity.User{
		activeUser("alice", identity.RoleOwner),
		activeUser("bob", identity.RoleViewer),
	}}
	resources := &fakeResources{}
	store := tuple.NewMemoryStore()
	ctx := context.Background()

	kept := []tuple.Tuple{
		tuple.Ownership("alice", "r1"),
		tuple.Membership("bob", "viewers"),
		tuple.GroupGrant("viewers", tuple.RelationViewer, "r1"),
	}
	ghosts := []tuple.Tuple{
		tuple.Ownership("deleted-user", "r2"),
		tuple.Membership("deleted-user", "editors"),
	}
	store.Write(ctx, append(append([]tuple.Tuple{}, kept...), ghosts...), nil)

	e := testEngine(users, resources, store)
	report, err := e.SweepGhosts(ctx)
	if err != nil {
		t.Fatalf("SweepGhosts: %v", err)
	}
	if report.Deleted != len(ghosts) {
		t.Errorf("deleted %d, want %d", report.Deleted, len(ghosts))
	}

	for _, g := range ghosts {
		for _, existing := range store.All() {
			if existing == g {
				t.Errorf("ghost tuple survived sweep: %s", g)
			}
		}
	}
	for _, k := range kept {
		found := false
		for _, existing := range store.All() {
			if existing == k {
				found = true
			}
		}
		if !found {
			t.Errorf("valid tuple removed by sweep: %s", k)
		}
	}

	// Re-running against a clean store deletes nothing.
	again, err := e.SweepGhosts(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Deleted != 0 {
		t.Errorf("second sweep deleted %d, want 0", again.Deleted)
	}
}

func TestSweepIgnoresUsersetSubjects(t *testing.T) {
	users := &fakeUsers{users: []identity.User{activeUser("alice", identity.RoleOwner)}}
	store := tuple.NewMemoryStore()
	ctx := context.Background()

	grant := tuple.GroupGrant("viewers", tuple.RelationViewer, "r1")
	store.Write(ctx, []tuple.Tuple{grant}, nil)

	e := testEngine(users, &fakeResources{}, store)
	if _, err := e.SweepGhosts(ctx); err != nil {
		t.Fatalf("SweepGhosts: %v", err)
	}
	if store.Len() != 1 {
		t.Error("group-membership reference subjects must not be swept")
	}
}

func TestPurgeSubject(t *testing.T) {
	users := &fakeUsers{users: []identity.User{activeUser("alice", identity.RoleOwner)}}
	store := tuple.NewMemoryStore()
	ctx := context.Background()

	store.Write(ctx, []tuple.Tuple{
		tuple.Membership("bob", "viewers"),
		tuple.Ownership("bob", "r9"),
		tuple.Ownership("alice", "r1"),
	}, nil)

	e := testEngine(users, &fakeResources{}, store)
	if err := e.PurgeSubject(ctx, "bob"); err != nil {
		t.Fatalf("PurgeSubject: %v", err)
	}

	if n := countMatching(store, tuple.Filter{Subject: "user:bob"}); n != 0 {
		t.Errorf("bob retains %d tuples", n)
	}
	if n := countMatching(store, tuple.Filter{Subject: "user:alice"}); n != 1 {
		t.Errorf("alice's tuples disturbed, have %d want 1", n)
	}
}
