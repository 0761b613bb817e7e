package custgorm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodian-sh/custodian/core/audit"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open("sqlite", ":memory:", nil, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func TestUserRepositoryRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	users := repo.Users()
	ctx := context.Background()

	saved := &identity.User{ID: "alice", Role: identity.RoleEditor, Active: true, CreatedAt: time.Now()}
	if err := users.Save(ctx, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := users.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != identity.RoleEditor || !got.Active {
		t.Fatalf("got %+v", got)
	}

	if _, err := users.Get(ctx, "nobody"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("Get missing err = %v, want ErrNotFound", err)
	}
	if err := users.Delete(ctx, "nobody"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrNotFound", err)
	}
	if err := users.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestResourceRepositoryVisibilityColumns(t *testing.T) {
	repo := openTestRepo(t)
	resources := repo.Resources()
	ctx := context.Background()

	legacy := int64(7)
	saved := &resource.Resource{
		ID:         "r1",
		Category:   resource.CategoryContact,
		OwnerID:    "alice",
		Name:       "Ada",
		Payload:    resource.JSON(`{"email":"ada@example.com"}`),
		Visibility: resource.Visibility{Viewer: true},
		LegacyID:   &legacy,
		CreatedAt:  time.Now(),
	}
	if err := resources.Save(ctx, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := resources.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Visibility.Viewer || got.Visibility.Editor || got.Visibility.Admin {
		t.Fatalf("visibility = %+v, want viewer only", got.Visibility)
	}
	if string(got.Payload) != `{"email":"ada@example.com"}` {
		t.Fatalf("payload = %s", got.Payload)
	}

	byLegacy, err := resources.GetByLegacyID(ctx, 7)
	if err != nil {
		t.Fatalf("GetByLegacyID: %v", err)
	}
	if byLegacy.ID != "r1" {
		t.Fatalf("legacy lookup returned %q", byLegacy.ID)
	}

	owned, err := resources.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("owned = %d, want 1", len(owned))
	}
}

func TestAuditRepositoryAppendsAndReads(t *testing.T) {
	repo := openTestRepo(t)
	store := repo.Audit()
	ctx := context.Background()

	recs := []struct{ id, actor string }{{"1", "alice"}, {"2", "bob"}}
	for i, rc := range recs {
		err := store.Save(ctx, &audit.Record{
			ID:        rc.id,
			ActorID:   rc.actor,
			Action:    audit.ActionWrite,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if recent[0].ActorID != "bob" {
		t.Fatalf("newest record actor = %q, want bob", recent[0].ActorID)
	}
}
