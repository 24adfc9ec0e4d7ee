package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openrepo/curata/internal/repo"
)

// MemoryBackend implements Backend with in-process maps. It is used in
// tests and for embedded single-process deployments.
type MemoryBackend struct {
	objects map[repo.PID]*repo.Object
}

// NewMemory creates an empty in-memory backend
func NewMemory() *MemoryBackend {
	return &MemoryBackend{objects: make(map[repo.PID]*repo.Object)}
}

// Close is a no-op for the in-memory backend
func (b *MemoryBackend) Close(ctx context.Context) error {
	return nil
}

// UpsertObject stores a copy of the object
func (b *MemoryBackend) UpsertObject(ctx context.Context, obj *repo.Object) error {
	if !obj.PID.Valid() {
		return fmt.Errorf("%w: malformed pid %q", repo.ErrInvalidArgument, obj.PID)
	}
	stored := *obj
	stored.Rels = copyRels(&obj.Rels)
	if stored.State == "" {
		stored.State = repo.StateActive
	}
	if existing, ok := b.objects[obj.PID]; ok {
		stored.Created = existing.Created
		if len(stored.Rels.All()) == 0 {
			stored.Rels = existing.Rels
		}
	}
	b.objects[obj.PID] = &stored
	return nil
}

// copyRels rebuilds a relationship set so stored and returned objects
// never share a backing slice with the caller's object.
func copyRels(src *repo.RelSet) repo.RelSet {
	var dst repo.RelSet
	for _, t := range src.All() {
		dst.Add(t)
	}
	return dst
}

// GetObject returns a copy of the stored object
func (b *MemoryBackend) GetObject(ctx context.Context, pid repo.PID) (*repo.Object, error) {
	obj, ok := b.objects[pid]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
	}
	copied := *obj
	copied.Rels = copyRels(&obj.Rels)
	return &copied, nil
}

// DeleteObject removes an object
func (b *MemoryBackend) DeleteObject(ctx context.Context, pid repo.PID) error {
	if _, ok := b.objects[pid]; !ok {
		return fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
	}
	delete(b.objects, pid)
	return nil
}

// ListPIDs returns all object PIDs sorted
func (b *MemoryBackend) ListPIDs(ctx context.Context) ([]repo.PID, error) {
	var pids []repo.PID
	for pid := range b.objects {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

// Relationships returns the subject's triples for a predicate
func (b *MemoryBackend) Relationships(ctx context.Context, subject repo.PID, pred repo.Predicate, valueFilter string) ([]repo.Triple, error) {
	obj, ok := b.objects[subject]
	if !ok {
		return nil, nil
	}
	if valueFilter != "" {
		return obj.Rels.Get(pred, valueFilter), nil
	}
	return obj.Rels.Get(pred), nil
}

// AddRelationship stores a triple, creating a bare subject if needed
func (b *MemoryBackend) AddRelationship(ctx context.Context, t repo.Triple) error {
	obj, ok := b.objects[t.Subject]
	if !ok {
		obj = &repo.Object{PID: t.Subject, State: repo.StateActive}
		b.objects[t.Subject] = obj
	}
	obj.Rels.Add(t)
	return nil
}

// RemoveRelationship deletes a triple; removing a non-existent triple
// is a no-op
func (b *MemoryBackend) RemoveRelationship(ctx context.Context, t repo.Triple) error {
	if obj, ok := b.objects[t.Subject]; ok {
		obj.Rels.Remove(t.Predicate, t.Object)
	}
	return nil
}

// QueryMembers returns one page of the collection's members
func (b *MemoryBackend) QueryMembers(ctx context.Context, collection repo.PID, page, limit int, mode FilterMode) (*PageResult, error) {
	if err := checkPage(collection, page, limit); err != nil {
		return nil, err
	}

	var members []*repo.Object
	for _, obj := range b.objects {
		if mode != FilterManage && obj.State != repo.StateActive {
			continue
		}
		linked := len(obj.Rels.Get(repo.IsMemberOfCollection, collection.String())) > 0 ||
			len(obj.Rels.Get(repo.IsMemberOf, collection.String())) > 0
		if linked {
			members = append(members, obj)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].PID < members[j].PID })

	result := &PageResult{Total: len(members)}
	start := page * limit
	for i := start; i < len(members) && i < start+limit; i++ {
		obj := members[i]
		rec := MemberRecord{PID: obj.PID, Title: obj.Label, Owner: obj.Owner}
		if !obj.Modified.IsZero() {
			modified := obj.Modified
			rec.Modified = &modified
		}
		result.Members = append(result.Members, rec)
	}
	return result, nil
}

// FindCollections returns collection-model objects whose label or PID
// contains textFilter, case-insensitively
func (b *MemoryBackend) FindCollections(ctx context.Context, textFilter string) ([]CollectionHit, error) {
	needle := strings.ToLower(textFilter)

	var hits []CollectionHit
	for _, obj := range b.objects {
		if len(obj.Rels.Get(repo.HasModel, repo.CollectionModel.String())) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(obj.Label), needle) ||
			strings.Contains(strings.ToLower(obj.PID.String()), needle) {
			hits = append(hits, CollectionHit{PID: obj.PID, Label: obj.Label})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].PID < hits[j].PID })
	return hits, nil
}
