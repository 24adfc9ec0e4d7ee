// Package repo holds the domain model for repository objects: PIDs,
// relationship triples, the predicate vocabulary, and collection
// membership management on top of a pluggable relationship store.
package repo

// Predicate identifies a relationship by vocabulary URI and local name.
type Predicate struct {
	URI  string // vocabulary namespace, e.g. RelsExtURI
	Name string // local name, e.g. "isMemberOfCollection"
}

func (p Predicate) String() string {
	return p.URI + p.Name
}

// Vocabulary URIs the membership layer depends on.
const (
	// RelsExtURI is the external-relations vocabulary used for
	// object-to-object links.
	RelsExtURI = "info:fedora/fedora-system:def/relations-external#"

	// ModelURI is the vocabulary used for content-model typing.
	ModelURI = "info:fedora/fedora-system:def/model#"
)

// Relationship predicates.
var (
	// IsMemberOfCollection links a member object to its collection.
	IsMemberOfCollection = Predicate{RelsExtURI, "isMemberOfCollection"}

	// IsMemberOf is the legacy membership predicate. Objects linked
	// historically may carry either predicate, so removal and parent
	// discovery consider both.
	IsMemberOf = Predicate{RelsExtURI, "isMemberOf"}

	// HasModel types an object with a content model.
	HasModel = Predicate{ModelURI, "hasModel"}
)

// CollectionModel is the well-known content model identifying
// collection objects.
const CollectionModel PID = "repo-system:collectionModel"
