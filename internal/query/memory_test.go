package query

import (
	"context"
	"testing"
	"time"

	"github.com/openrepo/curata/internal/repo"
)

func addMember(t *testing.T, b Backend, pid, collection repo.PID, state string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	obj := &repo.Object{PID: pid, Label: "member " + pid.String(), State: state, Created: now, Modified: now}
	obj.Rels.Add(repo.Triple{Subject: pid, Predicate: repo.IsMemberOfCollection, Object: collection.String()})
	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject(%s): %v", pid, err)
	}
}

func TestMemoryQueryMembersValidation(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()

	if _, err := b.QueryMembers(ctx, "bad", 0, 10, FilterDefault); !repo.IsInvalidArgument(err) {
		t.Errorf("malformed pid: expected invalid argument, got %v", err)
	}
	if _, err := b.QueryMembers(ctx, "test:coll", -1, 10, FilterDefault); !repo.IsInvalidArgument(err) {
		t.Errorf("negative page: expected invalid argument, got %v", err)
	}
	if _, err := b.QueryMembers(ctx, "test:coll", 0, 0, FilterDefault); !repo.IsInvalidArgument(err) {
		t.Errorf("zero limit: expected invalid argument, got %v", err)
	}
}

func TestMemoryQueryMembersPagination(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	collection := repo.PID("test:coll")

	const total, limit = 7, 3
	for i := 0; i < total; i++ {
		addMember(t, b, repo.PID("test:m"+string(rune('a'+i))), collection, repo.StateActive)
	}

	seen := map[repo.PID]bool{}
	for page := 0; ; page++ {
		result, err := b.QueryMembers(ctx, collection, page, limit, FilterDefault)
		if err != nil {
			t.Fatalf("QueryMembers page %d: %v", page, err)
		}
		if result.Total != total {
			t.Errorf("page %d: Total = %d, want %d", page, result.Total, total)
		}
		if len(result.Members) == 0 {
			break
		}
		if len(result.Members) > limit {
			t.Errorf("page %d: %d members exceeds limit %d", page, len(result.Members), limit)
		}
		for _, m := range result.Members {
			if seen[m.PID] {
				t.Errorf("member %s repeated across pages", m.PID)
			}
			seen[m.PID] = true
		}
	}
	if len(seen) != total {
		t.Errorf("covered %d members across pages, want %d", len(seen), total)
	}
}

func TestMemoryFilterModes(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	collection := repo.PID("test:coll")

	addMember(t, b, "test:active", collection, repo.StateActive)
	addMember(t, b, "test:inactive", collection, repo.StateInactive)

	result, err := b.QueryMembers(ctx, collection, 0, 10, FilterDefault)
	if err != nil {
		t.Fatalf("QueryMembers: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("default mode Total = %d, want 1", result.Total)
	}

	result, err = b.QueryMembers(ctx, collection, 0, 10, FilterManage)
	if err != nil {
		t.Fatalf("QueryMembers: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("manage mode Total = %d, want 2", result.Total)
	}
}

func TestMemoryGhostMemberRejected(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	collection := repo.PID("test:coll")
	if err := b.UpsertObject(ctx, &repo.Object{PID: collection, Label: "Coll"}); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}

	m := repo.NewManager(b)

	if err := m.AddToCollection(ctx, "test:ghost", collection); !repo.IsNotFound(err) {
		t.Fatalf("expected not found for ghost member, got %v", err)
	}

	for _, mode := range []FilterMode{FilterDefault, FilterManage} {
		result, err := b.QueryMembers(ctx, collection, 0, 10, mode)
		if err != nil {
			t.Fatalf("QueryMembers(%q): %v", mode, err)
		}
		if result.Total != 0 {
			t.Errorf("mode %q: Total = %d after rejected add, want 0", mode, result.Total)
		}
	}
}

func TestMemoryObjectCopiesRelationships(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()

	obj := &repo.Object{PID: "test:1", Label: "One"}
	obj.Rels.Add(repo.Triple{Subject: obj.PID, Predicate: repo.IsMemberOf, Object: "test:coll"})
	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}

	// Mutating the caller's object after upsert must not reach the store.
	obj.Rels.Remove(repo.IsMemberOf, "test:coll")

	got, err := b.GetObject(ctx, "test:1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if len(got.Rels.Get(repo.IsMemberOf, "test:coll")) != 1 {
		t.Fatalf("stored relationships aliased caller's set on upsert")
	}

	// Mutating a returned object must not reach the store either.
	got.Rels.Remove(repo.IsMemberOf, "test:coll")
	again, err := b.GetObject(ctx, "test:1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if len(again.Rels.Get(repo.IsMemberOf, "test:coll")) != 1 {
		t.Errorf("stored relationships aliased a returned object's set")
	}
}

func TestMemoryObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()

	if _, err := b.GetObject(ctx, "test:missing"); !repo.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := b.DeleteObject(ctx, "test:missing"); !repo.IsNotFound(err) {
		t.Errorf("expected not found on delete, got %v", err)
	}

	obj := &repo.Object{PID: "test:1", Label: "One"}
	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}

	got, err := b.GetObject(ctx, "test:1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if got.State != repo.StateActive {
		t.Errorf("default state = %q, want %q", got.State, repo.StateActive)
	}

	if err := b.DeleteObject(ctx, "test:1"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, err := b.GetObject(ctx, "test:1"); !repo.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
