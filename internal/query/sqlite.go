package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openrepo/curata/internal/repo"
)

// SQLiteBackend implements Backend using SQLite
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite backend
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: connecting to sqlite: %v", repo.ErrBackendUnavailable, err)
	}

	b := &SQLiteBackend{db: db}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return b, nil
}

// Close closes the SQLite connection
func (b *SQLiteBackend) Close(ctx context.Context) error {
	return b.db.Close()
}

// UpsertObject inserts or updates an object row
func (b *SQLiteBackend) UpsertObject(ctx context.Context, obj *repo.Object) error {
	if !obj.PID.Valid() {
		return fmt.Errorf("%w: malformed pid %q", repo.ErrInvalidArgument, obj.PID)
	}
	state := obj.State
	if state == "" {
		state = repo.StateActive
	}

	query := `
		INSERT INTO objects (pid, label, owner, state, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pid) DO UPDATE SET
			label = excluded.label,
			owner = excluded.owner,
			state = excluded.state,
			modified_at = excluded.modified_at
	`

	_, err := b.db.ExecContext(ctx, query,
		obj.PID.String(),
		obj.Label,
		obj.Owner,
		state,
		obj.Created.Format(time.RFC3339),
		obj.Modified.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: upserting object: %v", repo.ErrBackendUnavailable, err)
	}

	for _, t := range obj.Rels.All() {
		if err := b.AddRelationship(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// GetObject retrieves an object and its relationships by PID
func (b *SQLiteBackend) GetObject(ctx context.Context, pid repo.PID) (*repo.Object, error) {
	query := `
		SELECT pid, label, owner, state, created_at, modified_at
		FROM objects WHERE pid = ?
	`

	var obj repo.Object
	var pidStr, created, modified string
	err := b.db.QueryRowContext(ctx, query, pid.String()).Scan(
		&pidStr, &obj.Label, &obj.Owner, &obj.State, &created, &modified,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading object: %v", repo.ErrBackendUnavailable, err)
	}

	obj.PID = repo.PID(pidStr)
	obj.Created, _ = time.Parse(time.RFC3339, created)
	obj.Modified, _ = time.Parse(time.RFC3339, modified)

	rows, err := b.db.QueryContext(ctx, `
		SELECT predicate_uri, predicate_name, object
		FROM triples WHERE subject = ?
	`, pid.String())
	if err != nil {
		return nil, fmt.Errorf("%w: loading relationships: %v", repo.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var uri, name, target string
		if err := rows.Scan(&uri, &name, &target); err != nil {
			return nil, fmt.Errorf("scanning triple: %w", err)
		}
		obj.Rels.Add(repo.Triple{
			Subject:   pid,
			Predicate: repo.Predicate{URI: uri, Name: name},
			Object:    target,
		})
	}
	return &obj, rows.Err()
}

// DeleteObject removes an object and its outgoing relationships
func (b *SQLiteBackend) DeleteObject(ctx context.Context, pid repo.PID) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM objects WHERE pid = ?`, pid.String())
	if err != nil {
		return fmt.Errorf("%w: deleting object: %v", repo.ErrBackendUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
	}
	_, err = b.db.ExecContext(ctx, `DELETE FROM triples WHERE subject = ?`, pid.String())
	if err != nil {
		return fmt.Errorf("%w: deleting relationships: %v", repo.ErrBackendUnavailable, err)
	}
	return nil
}

// ListPIDs returns all object PIDs
func (b *SQLiteBackend) ListPIDs(ctx context.Context) ([]repo.PID, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT pid FROM objects ORDER BY pid`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing objects: %v", repo.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var pids []repo.PID
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scanning pid: %w", err)
		}
		pids = append(pids, repo.PID(pid))
	}
	return pids, rows.Err()
}

// Relationships returns the subject's triples for a predicate,
// optionally restricted to a target value
func (b *SQLiteBackend) Relationships(ctx context.Context, subject repo.PID, pred repo.Predicate, valueFilter string) ([]repo.Triple, error) {
	query := `
		SELECT object FROM triples
		WHERE subject = ? AND predicate_uri = ? AND predicate_name = ?
	`
	args := []interface{}{subject.String(), pred.URI, pred.Name}

	if valueFilter != "" {
		query += " AND object = ?"
		args = append(args, valueFilter)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: reading relationships: %v", repo.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var triples []repo.Triple
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		triples = append(triples, repo.Triple{Subject: subject, Predicate: pred, Object: target})
	}
	return triples, rows.Err()
}

// AddRelationship stores a triple
func (b *SQLiteBackend) AddRelationship(ctx context.Context, t repo.Triple) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO triples (subject, predicate_uri, predicate_name, object)
		VALUES (?, ?, ?, ?)
	`, t.Subject.String(), t.Predicate.URI, t.Predicate.Name, t.Object)
	if err != nil {
		return fmt.Errorf("%w: inserting relationship: %v", repo.ErrBackendUnavailable, err)
	}
	return nil
}

// RemoveRelationship deletes a triple; removing a non-existent triple
// is a no-op
func (b *SQLiteBackend) RemoveRelationship(ctx context.Context, t repo.Triple) error {
	_, err := b.db.ExecContext(ctx, `
		DELETE FROM triples
		WHERE subject = ? AND predicate_uri = ? AND predicate_name = ? AND object = ?
	`, t.Subject.String(), t.Predicate.URI, t.Predicate.Name, t.Object)
	if err != nil {
		return fmt.Errorf("%w: deleting relationship: %v", repo.ErrBackendUnavailable, err)
	}
	return nil
}

// QueryMembers returns one page of the collection's members. The total
// is counted with a separate query so it covers all pages.
func (b *SQLiteBackend) QueryMembers(ctx context.Context, collection repo.PID, page, limit int, mode FilterMode) (*PageResult, error) {
	if err := checkPage(collection, page, limit); err != nil {
		return nil, err
	}

	stateFilter := " AND o.state = 'A'"
	if mode == FilterManage {
		stateFilter = ""
	}

	countQuery := `
		SELECT COUNT(DISTINCT t.subject)
		FROM triples t
		JOIN objects o ON o.pid = t.subject
		WHERE t.predicate_uri = ? AND t.predicate_name IN (?, ?) AND t.object = ?
	` + stateFilter

	args := []interface{}{
		repo.RelsExtURI,
		repo.IsMemberOfCollection.Name,
		repo.IsMemberOf.Name,
		collection.String(),
	}

	var total int
	if err := b.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("%w: counting members: %v", repo.ErrBackendUnavailable, err)
	}

	pageQuery := `
		SELECT DISTINCT o.pid, o.label, o.owner, o.modified_at
		FROM triples t
		JOIN objects o ON o.pid = t.subject
		WHERE t.predicate_uri = ? AND t.predicate_name IN (?, ?) AND t.object = ?
	` + stateFilter + `
		ORDER BY o.pid
		LIMIT ? OFFSET ?
	`

	rows, err := b.db.QueryContext(ctx, pageQuery, append(args, limit, page*limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing members: %v", repo.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	result := &PageResult{Total: total}
	for rows.Next() {
		var rec MemberRecord
		var pid, modified string
		if err := rows.Scan(&pid, &rec.Title, &rec.Owner, &modified); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		rec.PID = repo.PID(pid)
		if ts, err := time.Parse(time.RFC3339, modified); err == nil {
			rec.Modified = &ts
		}
		result.Members = append(result.Members, rec)
	}
	return result, rows.Err()
}

// FindCollections returns collection-model objects whose label or PID
// contains textFilter, case-insensitively. The filter is bound as a
// LIKE parameter with its wildcards escaped, so filter text can never
// change the query's meaning.
func (b *SQLiteBackend) FindCollections(ctx context.Context, textFilter string) ([]CollectionHit, error) {
	query := `
		SELECT DISTINCT o.pid, o.label
		FROM triples t
		JOIN objects o ON o.pid = t.subject
		WHERE t.predicate_uri = ? AND t.predicate_name = ? AND t.object = ?
		  AND (o.label LIKE ? ESCAPE '\' OR o.pid LIKE ? ESCAPE '\')
		ORDER BY o.pid
	`

	like := "%" + escapeLike(textFilter) + "%"
	rows, err := b.db.QueryContext(ctx, query,
		repo.ModelURI,
		repo.HasModel.Name,
		repo.CollectionModel.String(),
		like, like,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: searching collections: %v", repo.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var hits []CollectionHit
	for rows.Next() {
		var hit CollectionHit
		var pid string
		if err := rows.Scan(&pid, &hit.Label); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		hit.PID = repo.PID(pid)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// escapeLike escapes LIKE wildcards so filter text matches literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
