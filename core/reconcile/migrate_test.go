package reconcile

import (
	"context"
	"testing"

	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
	"github.com/custodian-sh/custodian/core/tuple"
)

func legacy(n int64) *int64 { return &n }

func TestLegacyResourceID(t *testing.T) {
	cases := []struct {
		object string
		want   int64
		legacy bool
	}{
		{"resource:42", 42, true},
		{"resource:contact:7", 7, true},
		{"resource:contact_7", 7, true},
		{"resource:2f1c9e4a-9d7b-4a41-b7a8-0d6a8a3c9f11", 0, false},
		{"resource:contact:abc", 0, false},
		{"group:viewers", 0, false},
	}
	for _, tc := range cases {
		obj, err := tuple.ParseObject(tc.object)
		if err != nil {
			t.Fatalf("ParseObject(%q): %v", tc.object, err)
		}
		got, ok := legacyResourceID(obj)
		if ok != tc.legacy || (ok && got != tc.want) {
			t.Errorf("legacyResourceID(%q) = %d, %v; want %d, %v", tc.object, got, ok, tc.want, tc.legacy)
		}
	}
}

func TestRewriteLegacyKeys(t *testing.T) {
	users := &fakeUsers{users: []identity.User{activeUser("alice", identity.RoleOwner)}}
	resources := &fakeResources{resources: []resource.Resource{
		{ID: "uuid-7", OwnerID: "alice", Category: resource.CategoryContact, LegacyID: legacy(7)},
		{ID: "uuid-9", OwnerID: "alice", Category: resource.CategoryDocument, LegacyID: legacy(9)},
	}}
	store := tuple.NewMemoryStore()
	ctx := context.Background()

	legacyTuples := []tuple.Tuple{
		{Subject: tuple.UserSubject("alice"), Relation: tuple.RelationOwner,
			Object: tuple.ObjectRef{Type: tuple.TypeResource, ID: "contact:7"}},
		{Subject: tuple.GroupMember("viewers"), Relation: tuple.RelationViewer,
			Object: tuple.ObjectRef{Type: tuple.TypeResource, ID: "document_9"}},
		// No resource maps to legacy ID 999; must stay and be reported.
		{Subject: tuple.UserSubject("alice"), Relation: tuple.RelationOwner,
			Object: tuple.ObjectRef{Type: tuple.TypeResource, ID: "55"}},
	}
	canonical := tuple.Ownership("alice", "uuid-1")
	store.Write(ctx, append(legacyTuples, canonical), nil)

	e := testEngine(users, resources, store)
	report, err := e.RewriteLegacyKeys(ctx)
	if err != nil {
		t.Fatalf("RewriteLegacyKeys: %v", err)
	}

	if report.Rewritten != 2 {
		t.Errorf("rewritten = %d, want 2", report.Rewritten)
	}
	if len(report.Unresolved) != 1 {
		t.Errorf("unresolved = %d, want 1", len(report.Unresolved))
	}

	wantPresent := []tuple.Tuple{
		tuple.Ownership("alice", "uuid-7"),
		tuple.GroupGrant("viewers", tuple.RelationViewer, "uuid-9"),
		canonical,
	}
	for _, w := range wantPresent {
		ok, _ := store.Check(ctx, w)
		if !ok {
			t.Errorf("canonical tuple missing after rewrite: %s", w)
		}
	}
	for _, l := range legacyTuples[:2] {
		for _, existing := range store.All() {
			if existing == l {
				t.Errorf("legacy tuple survived rewrite: %s", l)
			}
		}
	}
}
