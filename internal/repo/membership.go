package repo

import (
	"context"
	"fmt"
	"strings"
)

// Manager handles collection membership for repository objects. All
// reads and writes go through the injected Store; the Manager holds no
// state of its own.
type Manager struct {
	store Store
}

// NewManager creates a membership manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// resolve surfaces ErrNotFound for any PID without a stored object.
func (m *Manager) resolve(ctx context.Context, pids ...PID) error {
	for _, pid := range pids {
		if _, err := m.store.GetObject(ctx, pid); err != nil {
			return fmt.Errorf("resolving %s: %w", pid, err)
		}
	}
	return nil
}

// AddToCollection links member to collection with isMemberOfCollection.
// Both objects must exist. Idempotent: if the triple already exists
// nothing is added, so calling twice produces exactly one triple.
func (m *Manager) AddToCollection(ctx context.Context, member, collection PID) error {
	if !member.Valid() || !collection.Valid() {
		return fmt.Errorf("%w: member %q, collection %q", ErrInvalidArgument, member, collection)
	}
	if err := m.resolve(ctx, member, collection); err != nil {
		return err
	}

	existing, err := m.store.Relationships(ctx, member, IsMemberOfCollection, collection.String())
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	t := Triple{Subject: member, Predicate: IsMemberOfCollection, Object: collection.String()}
	if err := m.store.AddRelationship(ctx, t); err != nil {
		return fmt.Errorf("adding membership: %w", err)
	}
	return nil
}

// RemoveFromCollection unlinks member from collection under both the
// current and the legacy predicate, so the member no longer appears in
// membership queries regardless of how it was originally linked.
// Both objects must exist; removing an absent relationship between
// existing objects is a no-op.
func (m *Manager) RemoveFromCollection(ctx context.Context, member, collection PID) error {
	if !member.Valid() || !collection.Valid() {
		return fmt.Errorf("%w: member %q, collection %q", ErrInvalidArgument, member, collection)
	}
	if err := m.resolve(ctx, member, collection); err != nil {
		return err
	}

	for _, pred := range []Predicate{IsMemberOfCollection, IsMemberOf} {
		t := Triple{Subject: member, Predicate: pred, Object: collection.String()}
		if err := m.store.RemoveRelationship(ctx, t); err != nil {
			return fmt.Errorf("removing %s: %w", pred.Name, err)
		}
	}
	return nil
}

// ParentPIDs returns the deduplicated union of the object's
// isMemberOfCollection and isMemberOf targets. Blank targets are
// dropped. Order follows first occurrence but is not significant.
func (m *Manager) ParentPIDs(ctx context.Context, object PID) ([]PID, error) {
	if !object.Valid() {
		return nil, fmt.Errorf("%w: object %q", ErrInvalidArgument, object)
	}

	seen := make(map[PID]bool)
	var parents []PID

	for _, pred := range []Predicate{IsMemberOfCollection, IsMemberOf} {
		triples, err := m.store.Relationships(ctx, object, pred, "")
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", pred.Name, err)
		}
		for _, t := range triples {
			target := PID(strings.TrimSpace(t.Object))
			if target == "" || seen[target] {
				continue
			}
			seen[target] = true
			parents = append(parents, target)
		}
	}
	return parents, nil
}

// OtherParents returns ParentPIDs with the excluded parent removed.
// If the excluded parent is not a current parent the result is
// unchanged.
func (m *Manager) OtherParents(ctx context.Context, object, excluded PID) ([]PID, error) {
	parents, err := m.ParentPIDs(ctx, object)
	if err != nil {
		return nil, err
	}

	for i, p := range parents {
		if p == excluded {
			return append(parents[:i], parents[i+1:]...), nil
		}
	}
	return parents, nil
}
