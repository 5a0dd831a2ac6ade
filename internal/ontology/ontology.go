// Package ontology provides access to the FOLIO legal ontology: concept
// lookup, label search, and descendant queries over the concept DAG.
package ontology

import "context"

// Concept is one node in the FOLIO ontology graph. DomainIDs, RangeIDs
// and InverseID are only meaningful when IsProperty is set: they are
// the concept ids a property's subject/object are expected to be
// descendants of, and the property id that expresses the inverse
// relation, respectively.
type Concept struct {
	ID         string
	PrefLabel  string
	AltLabels  []string
	ParentIDs  []string
	IsProperty bool
	Branches   []string
	DomainIDs  []string
	RangeIDs   []string
	InverseID  string
}

// Accessor abstracts the FOLIO ontology store. A memory-backed
// implementation serves small/offline deployments; an OpenSearch-backed
// one serves larger ontologies that don't fit comfortably in process
// memory.
type Accessor interface {
	// Concept returns the concept with the given id, or an
	// apperrors.KindOntology error if it does not exist.
	Concept(ctx context.Context, id string) (*Concept, error)

	// ConceptsByLabel returns every concept whose preferred or
	// alternate label equals label, case-insensitively.
	ConceptsByLabel(ctx context.Context, label string) ([]*Concept, error)

	// AllLabels returns every (label, conceptID, isPreferred) triple in
	// the ontology, for building the Ruler's and Property Matcher's
	// automatons.
	AllLabels(ctx context.Context) ([]LabelEntry, error)

	// IsDescendant reports whether candidateID is a descendant of
	// ancestorID in the concept DAG (or equal to it).
	IsDescendant(ctx context.Context, candidateID, ancestorID string) (bool, error)

	// Version identifies the loaded ontology snapshot, surfaced in job
	// metadata for reproducibility.
	Version() string

	// BranchesFor returns the set of top-level branch names (e.g.
	// "Actor", "Document", "Event") a concept belongs to. A concept
	// with two or more branches is a Branch Judge candidate.
	BranchesFor(ctx context.Context, id string) ([]string, error)
}

// LabelEntry pairs a label string with the concept it names and
// whether that label is the concept's preferred label (vs. an
// alternate/synonym label).
type LabelEntry struct {
	Label       string
	ConceptID   string
	IsPreferred bool
}
