package repo

import (
	"context"
	"time"
)

// Object state codes.
const (
	StateActive   = "A"
	StateInactive = "I"
	StateDeleted  = "D"
)

// Triple is a relationship edge from one object to another.
type Triple struct {
	Subject   PID       // owning object
	Predicate Predicate // relation
	Object    string    // target value, usually a PID string
}

// Object represents a repository object with its outgoing relationships.
type Object struct {
	PID      PID
	Label    string
	Owner    string
	State    string // StateActive, StateInactive or StateDeleted
	Created  time.Time
	Modified time.Time
	Rels     RelSet
}

// RelSet is an object's in-memory relationship set. Multiple triples
// with the same predicate are permitted.
type RelSet struct {
	triples []Triple
}

// Get returns the triples matching the predicate. With a value filter
// only triples whose object equals that value are returned.
func (s *RelSet) Get(pred Predicate, valueFilter ...string) []Triple {
	var out []Triple
	for _, t := range s.triples {
		if t.Predicate != pred {
			continue
		}
		if len(valueFilter) > 0 && t.Object != valueFilter[0] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Add appends a triple to the set. Uniqueness is not enforced here;
// callers that need it check with Get first.
func (s *RelSet) Add(t Triple) {
	s.triples = append(s.triples, t)
}

// Remove deletes all triples matching predicate and value. Removing a
// non-existent triple is a no-op.
func (s *RelSet) Remove(pred Predicate, value string) {
	kept := s.triples[:0]
	for _, t := range s.triples {
		if t.Predicate == pred && t.Object == value {
			continue
		}
		kept = append(kept, t)
	}
	s.triples = kept
}

// All returns a copy of every triple in the set.
func (s *RelSet) All() []Triple {
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// RelationshipStore provides access to an object's relationship triples
// in a backing store. Both the persistent query backends and the
// in-memory backend implement this interface.
type RelationshipStore interface {
	// Relationships returns the subject's triples for a predicate.
	// A non-empty valueFilter restricts to triples whose object
	// equals that value.
	Relationships(ctx context.Context, subject PID, pred Predicate, valueFilter string) ([]Triple, error)

	// AddRelationship stores a triple.
	AddRelationship(ctx context.Context, t Triple) error

	// RemoveRelationship deletes a triple. Removing a non-existent
	// triple is a no-op, not an error.
	RemoveRelationship(ctx context.Context, t Triple) error
}

// Store combines relationship access with object lookup. Membership
// mutations resolve both endpoints before touching triples, so linking
// a never-created object surfaces ErrNotFound instead of minting a
// ghost subject.
type Store interface {
	RelationshipStore

	// GetObject returns the object for a PID, or ErrNotFound.
	GetObject(ctx context.Context, pid PID) (*Object, error)
}
