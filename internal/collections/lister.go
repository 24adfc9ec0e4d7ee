// Package collections lists collection members and searches for
// collection objects under namespace-accessibility rules.
package collections

import (
	"context"
	"fmt"
	"strings"

	"github.com/openrepo/curata/internal/query"
	"github.com/openrepo/curata/internal/repo"
)

// DefaultPageSize is used when a caller passes a non-positive limit.
const DefaultPageSize = 20

// Config holds the lister's namespace and paging settings.
type Config struct {
	// RestrictNamespaces enables the namespace allowlist. When false
	// every PID is accessible.
	RestrictNamespaces bool

	// AllowedNamespaces lists accessible PID namespaces when
	// RestrictNamespaces is set.
	AllowedNamespaces []string

	// PageSize is the member page size used when the caller does not
	// give one. Zero means DefaultPageSize.
	PageSize int
}

// NamespacePolicy decides whether a PID's namespace is accessible to
// the current deployment.
type NamespacePolicy interface {
	Accessible(pid repo.PID) bool
}

// allowlistPolicy is the NamespacePolicy derived from Config.
type allowlistPolicy struct {
	restrict bool
	allowed  map[string]bool
}

func (p allowlistPolicy) Accessible(pid repo.PID) bool {
	if !p.restrict {
		return true
	}
	return p.allowed[pid.Namespace()]
}

// NewPolicy builds the allowlist NamespacePolicy from cfg.
func NewPolicy(cfg Config) NamespacePolicy {
	allowed := make(map[string]bool, len(cfg.AllowedNamespaces))
	for _, ns := range cfg.AllowedNamespaces {
		allowed[ns] = true
	}
	return allowlistPolicy{restrict: cfg.RestrictNamespaces, allowed: allowed}
}

// Lister searches collections and pages through their members.
type Lister struct {
	backend query.Backend
	policy  NamespacePolicy
	cfg     Config
}

// NewLister creates a Lister. A nil policy gets the allowlist policy
// built from cfg.
func NewLister(backend query.Backend, cfg Config, policy NamespacePolicy) *Lister {
	if policy == nil {
		policy = NewPolicy(cfg)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Lister{backend: backend, policy: policy, cfg: cfg}
}

// SearchCollections finds collection-model objects whose label or PID
// contains textFilter, case-insensitively, keeps only those in
// accessible namespaces, and maps PID to a "label (pid)" display
// label.
func (l *Lister) SearchCollections(ctx context.Context, textFilter string) (map[string]string, error) {
	hits, err := l.backend.FindCollections(ctx, textFilter)
	if err != nil {
		return nil, fmt.Errorf("searching collections: %w", err)
	}

	needle := strings.ToLower(textFilter)
	results := make(map[string]string)
	for _, hit := range hits {
		// Backends already filter; re-check here so the contract does
		// not depend on backend filter fidelity.
		if !strings.Contains(strings.ToLower(hit.Label), needle) &&
			!strings.Contains(strings.ToLower(hit.PID.String()), needle) {
			continue
		}
		if !l.policy.Accessible(hit.PID) {
			continue
		}
		results[hit.PID.String()] = fmt.Sprintf("%s (%s)", hit.Label, hit.PID)
	}
	return results, nil
}

// Members returns one page of a collection's members. A non-positive
// limit falls back to the configured page size; a negative page is
// rejected before the backend is queried.
func (l *Lister) Members(ctx context.Context, collection repo.PID, page, limit int, mode query.FilterMode) (*query.PageResult, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: malformed collection pid %q", repo.ErrInvalidArgument, collection)
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: negative page %d", repo.ErrInvalidArgument, page)
	}
	if limit <= 0 {
		limit = l.cfg.PageSize
	}
	return l.backend.QueryMembers(ctx, collection, page, limit, mode)
}
