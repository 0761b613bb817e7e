package tuple

import (
	"context"
	"testing"
)

func TestMemoryStoreWriteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	own := Ownership("alice", "r1")

	for i := 0; i < 3; i++ {
		if err := s.Write(ctx, []Tuple{own}, nil); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("store holds %d tuples, want 1", s.Len())
	}

	// Deleting a tuple twice is also a no-op.
	for i := 0; i < 2; i++ {
		if err := s.Write(ctx, nil, []Tuple{own}); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("store holds %d tuples after delete, want 0", s.Len())
	}
}

func TestMemoryStoreCheckResolvesGroups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Write(ctx, []Tuple{
		Membership("bob", "viewers"),
		GroupGrant("viewers", RelationViewer, "r1"),
	}, nil)

	ok, err := s.Check(ctx, Tuple{Subject: UserSubject("bob"), Relation: RelationViewer, Object: ResourceObject("r1")})
	if err != nil || !ok {
		t.Errorf("group member check = %v, %v; want true", ok, err)
	}

	ok, _ = s.Check(ctx, Tuple{Subject: UserSubject("bob"), Relation: RelationEditor, Object: ResourceObject("r1")})
	if ok {
		t.Error("bob should not resolve editor")
	}

	ok, _ = s.Check(ctx, Tuple{Subject: UserSubject("mallory"), Relation: RelationViewer, Object: ResourceObject("r1")})
	if ok {
		t.Error("non-member should not resolve viewer")
	}
}

func TestMemoryStoreReadPagination(t *testing.T) {
	s := NewMemoryStore()
	s.SetPageSize(2)
	ctx := context.Background()

	want := []Tuple{
		Ownership("a", "r1"),
		Ownership("b", "r2"),
		Ownership("c", "r3"),
		Membership("d", "viewers"),
		Membership("e", "editors"),
	}
	s.Write(ctx, want, nil)

	var all []Tuple
	token := ""
	pages := 0
	for {
		page, next, err := s.Read(ctx, Filter{}, token)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		all = append(all, page...)
		pages++
		if next == "" {
			break
		}
		token = next
	}

	if len(all) != len(want) {
		t.Errorf("read %d tuples, want %d", len(all), len(want))
	}
	if pages < 3 {
		t.Errorf("expected at least 3 pages, got %d", pages)
	}

	// Filtered read only returns membership tuples.
	members, _, err := s.Read(ctx, Filter{Relation: RelationMember}, "")
	if err != nil {
		t.Fatalf("filtered Read: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("filtered read returned %d tuples, want 2", len(members))
	}
}
