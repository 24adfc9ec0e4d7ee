package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/openrepo/curata/internal/repo"
)

func newTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	ctx := context.Background()

	b, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { b.Close(ctx) })
	return b
}

func addCollection(t *testing.T, b Backend, pid repo.PID, label string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	obj := &repo.Object{PID: pid, Label: label, State: repo.StateActive, Created: now, Modified: now}
	obj.Rels.Add(repo.Triple{Subject: pid, Predicate: repo.HasModel, Object: repo.CollectionModel.String()})
	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject(%s): %v", pid, err)
	}
}

func TestSQLiteRelationships(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	subject := repo.PID("test:obj")
	triple := repo.Triple{Subject: subject, Predicate: repo.IsMemberOf, Object: "test:coll"}

	if err := b.AddRelationship(ctx, triple); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	got, err := b.Relationships(ctx, subject, repo.IsMemberOf, "")
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}
	if len(got) != 1 || got[0].Object != "test:coll" {
		t.Fatalf("Relationships = %v, want one triple to test:coll", got)
	}

	// Value filter narrows to matching targets only.
	got, err = b.Relationships(ctx, subject, repo.IsMemberOf, "test:other")
	if err != nil {
		t.Fatalf("Relationships with filter: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no triples for non-matching filter, got %v", got)
	}

	// Removing a non-existent triple is a no-op.
	absent := repo.Triple{Subject: subject, Predicate: repo.IsMemberOf, Object: "test:absent"}
	if err := b.RemoveRelationship(ctx, absent); err != nil {
		t.Errorf("removing absent triple should not error, got %v", err)
	}

	if err := b.RemoveRelationship(ctx, triple); err != nil {
		t.Fatalf("RemoveRelationship: %v", err)
	}
	got, _ = b.Relationships(ctx, subject, repo.IsMemberOf, "")
	if len(got) != 0 {
		t.Errorf("expected no triples after removal, got %v", got)
	}
}

func TestSQLiteObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	now := time.Now().UTC().Truncate(time.Second)
	obj := &repo.Object{
		PID:      "test:1",
		Label:    "First",
		Owner:    "admin",
		State:    repo.StateActive,
		Created:  now,
		Modified: now,
	}
	obj.Rels.Add(repo.Triple{Subject: obj.PID, Predicate: repo.IsMemberOfCollection, Object: "test:coll"})

	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}

	got, err := b.GetObject(ctx, "test:1")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if got.Label != "First" || got.Owner != "admin" || got.State != repo.StateActive {
		t.Errorf("unexpected object fields: %+v", got)
	}
	if len(got.Rels.Get(repo.IsMemberOfCollection, "test:coll")) != 1 {
		t.Errorf("membership triple lost in round trip")
	}

	if _, err := b.GetObject(ctx, "test:missing"); !repo.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSQLiteQueryMembersPagination(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)
	collection := repo.PID("test:coll")

	const total, limit = 10, 4
	for i := 0; i < total; i++ {
		addMember(t, b, repo.PID(fmt.Sprintf("test:m%02d", i)), collection, repo.StateActive)
	}

	seen := map[repo.PID]bool{}
	pages := 0
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
		pages++
		for _, m := range result.Members {
			if seen[m.PID] {
				t.Errorf("member %s repeated across pages", m.PID)
			}
			seen[m.PID] = true
		}
	}

	if want := (total + limit - 1) / limit; pages != want {
		t.Errorf("walked %d pages, want %d", pages, want)
	}
	if len(seen) != total {
		t.Errorf("covered %d members, want %d", len(seen), total)
	}
}

func TestSQLiteQueryMembersLegacyPredicate(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)
	collection := repo.PID("test:coll")

	now := time.Now().UTC()
	obj := &repo.Object{PID: "test:legacy", Label: "Legacy", State: repo.StateActive, Created: now, Modified: now}
	obj.Rels.Add(repo.Triple{Subject: obj.PID, Predicate: repo.IsMemberOf, Object: collection.String()})
	if err := b.UpsertObject(ctx, obj); err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}

	result, err := b.QueryMembers(ctx, collection, 0, 10, FilterDefault)
	if err != nil {
		t.Fatalf("QueryMembers: %v", err)
	}
	if result.Total != 1 || len(result.Members) != 1 {
		t.Fatalf("legacy-linked member not returned: %+v", result)
	}
	if result.Members[0].PID != "test:legacy" {
		t.Errorf("unexpected member %s", result.Members[0].PID)
	}
}

func TestSQLiteQueryMembersStateFilter(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)
	collection := repo.PID("test:coll")

	addMember(t, b, "test:active", collection, repo.StateActive)
	addMember(t, b, "test:gone", collection, repo.StateDeleted)

	result, err := b.QueryMembers(ctx, collection, 0, 10, FilterDefault)
	if err != nil {
		t.Fatalf("QueryMembers: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("default mode Total = %d, want 1", result.Total)
	}

	result, err = b.QueryMembers(ctx, collection, 0, 10, FilterManage)
	if err != nil {
		t.Fatalf("QueryMembers manage: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("manage mode Total = %d, want 2", result.Total)
	}
}

func TestSQLiteGhostMemberRejected(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)
	collection := repo.PID("test:coll")
	addCollection(t, b, collection, "Coll")

	m := repo.NewManager(b)

	// Linking a PID with no object row surfaces not found and leaves
	// no triples behind.
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

func TestSQLiteFindCollections(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	addCollection(t, b, "test:1", "Foo Bears")
	addCollection(t, b, "test:2", "Other")

	hits, err := b.FindCollections(ctx, "bear")
	if err != nil {
		t.Fatalf("FindCollections: %v", err)
	}
	if len(hits) != 1 || hits[0].PID != "test:1" {
		t.Fatalf("FindCollections(bear) = %v, want [test:1]", hits)
	}

	// PID text matches too.
	hits, err = b.FindCollections(ctx, "test:2")
	if err != nil {
		t.Fatalf("FindCollections: %v", err)
	}
	if len(hits) != 1 || hits[0].PID != "test:2" {
		t.Fatalf("FindCollections(test:2) = %v, want [test:2]", hits)
	}
}

func TestSQLiteFindCollectionsInjectionSafe(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	addCollection(t, b, "test:1", "Foo Bears")
	addCollection(t, b, "test:2", "Other")

	for _, filter := range []string{
		"'; DROP ALL; --",
		`%`,
		`_`,
		`\`,
		`" OR 1=1`,
	} {
		hits, err := b.FindCollections(ctx, filter)
		if err != nil {
			t.Errorf("FindCollections(%q) errored: %v", filter, err)
			continue
		}
		if len(hits) != 0 {
			t.Errorf("FindCollections(%q) = %v, want no matches", filter, hits)
		}
	}

	// The store still answers after hostile input.
	if _, err := b.ListPIDs(ctx); err != nil {
		t.Fatalf("ListPIDs after hostile filters: %v", err)
	}
}
