package query

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/openrepo/curata/internal/repo"
)

// Neo4jBackend implements Backend against a Neo4j graph. Objects are
// stored as (:Object {pid, ...}) nodes; each relationship triple is a
// [:REL {uri, name}] edge to a (:Term {value}) node, so targets that
// are not repository objects still resolve.
type Neo4jBackend struct {
	driver neo4j.DriverWithContext
}

// Neo4jConfig holds Neo4j connection configuration
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4j creates a new Neo4j backend
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: connecting to neo4j: %v", repo.ErrBackendUnavailable, err)
	}

	return &Neo4jBackend{driver: driver}, nil
}

// Close closes the Neo4j connection
func (b *Neo4jBackend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

func (b *Neo4jBackend) session(ctx context.Context) neo4j.SessionWithContext {
	return b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
}

// UpsertObject creates or updates an object node
func (b *Neo4jBackend) UpsertObject(ctx context.Context, obj *repo.Object) error {
	if !obj.PID.Valid() {
		return fmt.Errorf("%w: malformed pid %q", repo.ErrInvalidArgument, obj.PID)
	}
	state := obj.State
	if state == "" {
		state = repo.StateActive
	}

	session := b.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (o:Object {pid: $pid})
			SET o.label = $label,
			    o.owner = $owner,
			    o.state = $state,
			    o.created = $created,
			    o.modified = $modified
			RETURN o
		`

		params := map[string]any{
			"pid":      obj.PID.String(),
			"label":    obj.Label,
			"owner":    obj.Owner,
			"state":    state,
			"created":  obj.Created.Format(time.RFC3339),
			"modified": obj.Modified.Format(time.RFC3339),
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
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

// GetObject retrieves an object node and its outgoing triples
func (b *Neo4jBackend) GetObject(ctx context.Context, pid repo.PID) (*repo.Object, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (o:Object {pid: $pid})
			OPTIONAL MATCH (o)-[r:REL]->(t:Term)
			RETURN o, collect({uri: r.uri, name: r.name, value: t.value}) AS rels
		`

		result, err := tx.Run(ctx, query, map[string]any{"pid": pid.String()})
		if err != nil {
			return nil, err
		}

		if !result.Next(ctx) {
			return nil, fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
		}

		record := result.Record()
		nodeValue, _ := record.Get("o")
		node := nodeValue.(neo4j.Node)

		obj := &repo.Object{
			PID:   repo.PID(stringProp(node.Props, "pid")),
			Label: stringProp(node.Props, "label"),
			Owner: stringProp(node.Props, "owner"),
			State: stringProp(node.Props, "state"),
		}
		obj.Created, _ = time.Parse(time.RFC3339, stringProp(node.Props, "created"))
		obj.Modified, _ = time.Parse(time.RFC3339, stringProp(node.Props, "modified"))

		relsValue, _ := record.Get("rels")
		for _, rv := range relsValue.([]any) {
			rel, ok := rv.(map[string]any)
			if !ok || rel["uri"] == nil {
				continue
			}
			obj.Rels.Add(repo.Triple{
				Subject:   obj.PID,
				Predicate: repo.Predicate{URI: rel["uri"].(string), Name: rel["name"].(string)},
				Object:    rel["value"].(string),
			})
		}
		return obj, nil
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading object: %v", repo.ErrBackendUnavailable, err)
	}

	return result.(*repo.Object), nil
}

// DeleteObject removes an object node and its outgoing triples
func (b *Neo4jBackend) DeleteObject(ctx context.Context, pid repo.PID) error {
	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (o:Object {pid: $pid})
			WITH o, count(o) AS found
			DETACH DELETE o
			RETURN found
		`

		result, err := tx.Run(ctx, query, map[string]any{"pid": pid.String()})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return 0, nil
		}
		found, _ := result.Record().Get("found")
		return found, nil
	})
	if err != nil {
		return fmt.Errorf("%w: deleting object: %v", repo.ErrBackendUnavailable, err)
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return fmt.Errorf("%w: object %s", repo.ErrNotFound, pid)
	}
	return nil
}

// ListPIDs returns all object PIDs
func (b *Neo4jBackend) ListPIDs(ctx context.Context) ([]repo.PID, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (o:Object) RETURN o.pid AS pid ORDER BY pid`

		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var pids []repo.PID
		for result.Next(ctx) {
			pid, _ := result.Record().Get("pid")
			pids = append(pids, repo.PID(pid.(string)))
		}
		return pids, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing objects: %v", repo.ErrBackendUnavailable, err)
	}

	return result.([]repo.PID), nil
}

// Relationships returns a subject's triples for a predicate
func (b *Neo4jBackend) Relationships(ctx context.Context, subject repo.PID, pred repo.Predicate, valueFilter string) ([]repo.Triple, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (o:Object {pid: $pid})-[r:REL {uri: $uri, name: $name}]->(t:Term)
			WHERE $value = '' OR t.value = $value
			RETURN t.value AS value
		`

		params := map[string]any{
			"pid":   subject.String(),
			"uri":   pred.URI,
			"name":  pred.Name,
			"value": valueFilter,
		}

		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var triples []repo.Triple
		for result.Next(ctx) {
			value, _ := result.Record().Get("value")
			triples = append(triples, repo.Triple{
				Subject:   subject,
				Predicate: pred,
				Object:    value.(string),
			})
		}
		return triples, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading relationships: %v", repo.ErrBackendUnavailable, err)
	}

	return result.([]repo.Triple), nil
}

// AddRelationship stores a triple
func (b *Neo4jBackend) AddRelationship(ctx context.Context, t repo.Triple) error {
	session := b.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (o:Object {pid: $pid})
			MERGE (t:Term {value: $value})
			CREATE (o)-[:REL {uri: $uri, name: $name}]->(t)
		`

		params := map[string]any{
			"pid":   t.Subject.String(),
			"uri":   t.Predicate.URI,
			"name":  t.Predicate.Name,
			"value": t.Object,
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: inserting relationship: %v", repo.ErrBackendUnavailable, err)
	}
	return nil
}

// RemoveRelationship deletes a triple; removing a non-existent triple
// is a no-op
func (b *Neo4jBackend) RemoveRelationship(ctx context.Context, t repo.Triple) error {
	session := b.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (o:Object {pid: $pid})-[r:REL {uri: $uri, name: $name}]->(t:Term {value: $value})
			DELETE r
		`

		params := map[string]any{
			"pid":   t.Subject.String(),
			"uri":   t.Predicate.URI,
			"name":  t.Predicate.Name,
			"value": t.Object,
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: deleting relationship: %v", repo.ErrBackendUnavailable, err)
	}
	return nil
}

// QueryMembers returns one page of the collection's members. The count
// runs in the same read transaction as the page query.
func (b *Neo4jBackend) QueryMembers(ctx context.Context, collection repo.PID, page, limit int, mode FilterMode) (*PageResult, error) {
	if err := checkPage(collection, page, limit); err != nil {
		return nil, err
	}

	stateFilter := "AND m.state = 'A'"
	if mode == FilterManage {
		stateFilter = ""
	}

	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		matchClause := fmt.Sprintf(`
			MATCH (m:Object)-[r:REL {uri: $uri}]->(t:Term {value: $collection})
			WHERE r.name IN [$memberOfCollection, $memberOf] %s
		`, stateFilter)

		params := map[string]any{
			"uri":                repo.RelsExtURI,
			"memberOfCollection": repo.IsMemberOfCollection.Name,
			"memberOf":           repo.IsMemberOf.Name,
			"collection":         collection.String(),
			"skip":               page * limit,
			"limit":              limit,
		}

		countResult, err := tx.Run(ctx, matchClause+`RETURN count(DISTINCT m) AS total`, params)
		if err != nil {
			return nil, err
		}
		if !countResult.Next(ctx) {
			return nil, fmt.Errorf("count query returned no row")
		}
		totalValue, _ := countResult.Record().Get("total")
		total := int(totalValue.(int64))

		pageResult, err := tx.Run(ctx, matchClause+`
			RETURN DISTINCT m.pid AS pid, m.label AS label, m.owner AS owner, m.modified AS modified
			ORDER BY pid
			SKIP $skip LIMIT $limit
		`, params)
		if err != nil {
			return nil, err
		}

		out := &PageResult{Total: total}
		for pageResult.Next(ctx) {
			record := pageResult.Record()
			rec := MemberRecord{
				PID:   repo.PID(recordString(record, "pid")),
				Title: recordString(record, "label"),
				Owner: recordString(record, "owner"),
			}
			if ts, err := time.Parse(time.RFC3339, recordString(record, "modified")); err == nil {
				rec.Modified = &ts
			}
			out.Members = append(out.Members, rec)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing members: %v", repo.ErrBackendUnavailable, err)
	}

	return result.(*PageResult), nil
}

// FindCollections returns collection-model objects whose label or PID
// contains textFilter, case-insensitively. The filter is a bound
// parameter compared with CONTAINS, so filter text can never change
// the query's meaning.
func (b *Neo4jBackend) FindCollections(ctx context.Context, textFilter string) ([]CollectionHit, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (c:Object)-[:REL {uri: $uri, name: $name}]->(t:Term {value: $model})
			WHERE toLower(c.label) CONTAINS toLower($filter)
			   OR toLower(c.pid) CONTAINS toLower($filter)
			RETURN DISTINCT c.pid AS pid, c.label AS label
			ORDER BY pid
		`

		params := map[string]any{
			"uri":    repo.ModelURI,
			"name":   repo.HasModel.Name,
			"model":  repo.CollectionModel.String(),
			"filter": textFilter,
		}

		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var hits []CollectionHit
		for result.Next(ctx) {
			record := result.Record()
			hits = append(hits, CollectionHit{
				PID:   repo.PID(recordString(record, "pid")),
				Label: recordString(record, "label"),
			})
		}
		return hits, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching collections: %v", repo.ErrBackendUnavailable, err)
	}

	return result.([]CollectionHit), nil
}

func stringProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func recordString(record *neo4j.Record, key string) string {
	value, _ := record.Get(key)
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
