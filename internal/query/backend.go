// Package query defines the query backend abstraction used for
// membership listing and collection search, with SQLite, Neo4j and
// in-memory implementations.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/openrepo/curata/internal/repo"
)

// FilterMode restricts which members a query sees. The zero value is
// the default public view; backends may widen visibility for
// privileged modes.
type FilterMode string

const (
	// FilterDefault shows only active objects.
	FilterDefault FilterMode = ""

	// FilterManage shows all objects regardless of state, for
	// management views.
	FilterManage FilterMode = "manage"
)

// MemberRecord is a read-only projection of a collection member
// returned by membership queries.
type MemberRecord struct {
	PID      repo.PID   `json:"pid"`
	Title    string     `json:"title,omitempty"`
	Owner    string     `json:"owner,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
}

// PageResult is one page of members plus the total count across all
// pages. Total is computed independently of the page slice.
type PageResult struct {
	Total   int            `json:"total"`
	Members []MemberRecord `json:"members"`
}

// CollectionHit is a collection-typed object matched by FindCollections.
type CollectionHit struct {
	PID   repo.PID `json:"pid"`
	Label string   `json:"label"`
}

// Backend is the interface for membership query backends. SQLite,
// Neo4j and the in-memory store implement this interface.
type Backend interface {
	repo.RelationshipStore

	// Lifecycle
	Close(ctx context.Context) error

	// Object operations
	UpsertObject(ctx context.Context, obj *repo.Object) error
	GetObject(ctx context.Context, pid repo.PID) (*repo.Object, error)
	DeleteObject(ctx context.Context, pid repo.PID) error
	ListPIDs(ctx context.Context) ([]repo.PID, error)

	// QueryMembers returns one page of the collection's members under
	// both membership predicates. page is zero-based; limit must be
	// positive. Members are ordered by PID so consecutive pages never
	// repeat or skip an item.
	QueryMembers(ctx context.Context, collection repo.PID, page, limit int, mode FilterMode) (*PageResult, error)

	// FindCollections returns collection-model objects whose label or
	// PID contains textFilter, case-insensitively. The filter text is
	// always bound as a query parameter, never spliced into the query.
	FindCollections(ctx context.Context, textFilter string) ([]CollectionHit, error)
}

// checkPage validates paging arguments shared by all backends.
func checkPage(collection repo.PID, page, limit int) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: malformed collection pid %q", repo.ErrInvalidArgument, collection)
	}
	if page < 0 {
		return fmt.Errorf("%w: negative page %d", repo.ErrInvalidArgument, page)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: non-positive limit %d", repo.ErrInvalidArgument, limit)
	}
	return nil
}
