// Package embedindex provides nearest-neighbor search over concept
// label embeddings, used by the Resolver and the Concept Proposer's
// semantic triage step.
package embedindex

import "context"

// Neighbor is one nearest-neighbor search result.
type Neighbor struct {
	ConceptID string
	Score     float64 // cosine similarity, higher is closer
}

// Index abstracts the embedding backend. A memory-backed
// implementation is always available (degrading gracefully with no
// external dependency); an OpenSearch k-NN backed implementation
// serves larger ontology embeddings.
type Index interface {
	// Nearest returns the top-k concept embeddings closest to vector.
	Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error)

	// NearestIn scores vector against only the given candidate concept
	// ids, used by the Reconciler's embedding triage to disambiguate a
	// disputed surface among a short, already-known candidate list.
	NearestIn(ctx context.Context, vector []float32, candidateIDs []string, k int) ([]Neighbor, error)

	// Available reports whether the index has any vectors loaded. The
	// Concept Proposer and Resolver fall back to lexical-only matching
	// when this is false, per the graceful degradation rules.
	Available() bool
}
