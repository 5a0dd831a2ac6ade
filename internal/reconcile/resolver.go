package reconcile

import (
	"context"

	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

const (
	lexicalWeight  = 0.6
	semanticWeight = 0.4
)

// Resolver recomputes each ConceptMatch's composite score as
// 0.6*lexical + 0.4*semantic, where lexical is the Reconciler's
// surviving confidence and semantic is the cosine similarity between
// the span's own embedding and its chosen concept's label embedding.
// A match whose composite score falls below the conflict threshold is
// flagged as needing judgment, a quality signal surfaced in the final
// metadata even though the Reranker and Branch Judge themselves run
// unconditionally on every resolved match.
type Resolver struct {
	embedder        llm.Embedder
	index           embedindex.Index
	conflictThreshold float64
}

func NewResolver(embedder llm.Embedder, index embedindex.Index, conflictThreshold float64) *Resolver {
	return &Resolver{embedder: embedder, index: index, conflictThreshold: conflictThreshold}
}

// Resolved pairs a ConceptMatch with the flag marking whether its
// composite score needs further adjudication.
type Resolved struct {
	model.ConceptMatch
	Composite    float64
	NeedsJudgment bool
}

func (r *Resolver) Run(ctx context.Context, matches []model.ConceptMatch, documentText string) []Resolved {
	out := make([]Resolved, 0, len(matches))
	for _, m := range matches {
		semantic, hasSemantic := r.semanticScore(ctx, m, documentText)
		composite := lexicalWeight*m.Confidence + semanticWeight*semantic
		prior := m.Confidence
		m.Confidence = composite
		if m.PreferredLabel == "" {
			m.PreferredLabel = m.Label
		}
		if hasSemantic {
			m.AddSource(model.SourceSemantic)
		}
		if m.State == "" {
			m.State = model.StatePreliminary
		}
		m.Lineage = append(m.Lineage, model.LineageEntry{
			Stage:  "resolver",
			Action: "composite_score",
			Before: prior,
			After:  composite,
		})
		out = append(out, Resolved{
			ConceptMatch:  m,
			Composite:     composite,
			NeedsJudgment: composite < r.conflictThreshold,
		})
	}
	return out
}

// semanticScore returns the cosine similarity between the span's text
// embedding and its matched concept's nearest indexed embedding, and
// whether a real semantic vote was computed. It degrades to the
// lexical confidence itself (a neutral semantic vote, not counted as a
// corroborating source) when no embedder or index is configured, per
// the graceful degradation rules.
func (r *Resolver) semanticScore(ctx context.Context, m model.ConceptMatch, documentText string) (float64, bool) {
	if r.embedder == nil || r.index == nil || !r.index.Available() {
		return m.Confidence, false
	}
	spanText := m.Span.Text(documentText)
	if spanText == "" {
		return m.Confidence, false
	}
	vector, err := r.embedder.Embed(ctx, spanText)
	if err != nil {
		return m.Confidence, false
	}
	neighbors, err := r.index.Nearest(ctx, vector, 5)
	if err != nil {
		return m.Confidence, false
	}
	for _, n := range neighbors {
		if n.ConceptID == m.ConceptID {
			return n.Score, true
		}
	}
	return 0, true
}
