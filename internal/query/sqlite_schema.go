package query

// SQLite schema DDL constants

const schemaObjects = `
CREATE TABLE IF NOT EXISTS objects (
    pid TEXT PRIMARY KEY,
    label TEXT NOT NULL DEFAULT '',
    owner TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'A',
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL
)`

const schemaTriples = `
CREATE TABLE IF NOT EXISTS triples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject TEXT NOT NULL,
    predicate_uri TEXT NOT NULL,
    predicate_name TEXT NOT NULL,
    object TEXT NOT NULL
)`

// Index definitions
const indexObjectsState = `CREATE INDEX IF NOT EXISTS idx_objects_state ON objects(state)`
const indexTriplesSubject = `CREATE INDEX IF NOT EXISTS idx_triples_subject ON triples(subject)`
const indexTriplesPredicate = `CREATE INDEX IF NOT EXISTS idx_triples_predicate ON triples(predicate_name)`
const indexTriplesObject = `CREATE INDEX IF NOT EXISTS idx_triples_object ON triples(object)`

// SQLite pragmas for optimal performance
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaObjects,
		schemaTriples,
		indexObjectsState,
		indexTriplesSubject,
		indexTriplesPredicate,
		indexTriplesObject,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
