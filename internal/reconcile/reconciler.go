// Package reconcile implements the Phase 3 reconciliation stages that
// turn Phase 2's raw candidate matches into a settled, conflict-free
// set of ConceptMatches: the Reconciler, Resolver, Reranker and Branch
// Judge, in that order.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

// normalizedSurface collapses a surface string the way the Reconciler's
// alignment rule requires: NFKC normalization already happened during
// document ingestion, so here it only needs lowercasing and whitespace
// collapse to compare Ruler and Proposer surface forms.
func normalizedSurface(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// triageMargin is the minimum lead the top embedding candidate must
// hold over the runner-up for the Reconciler to treat a branch
// conflict as resolved, per the embedding-triage rule.
const triageMargin = 0.05

// Reconciler merges every Phase 2 candidate ConceptMatch into the
// smallest set of discoveries the exactly-once-resolution property
// requires: every candidate sharing normalized surface text —
// regardless of how many times that text occurs in the document, or
// which arm (Ruler or Concept Proposer) proposed it — is considered
// for the same discovery. When every candidate in a group agrees on
// concept, they merge outright. When they disagree, embedding triage
// (or, with no embedder configured, a text-equality fallback) decides
// whether to collapse the group to one winner or keep the disputed
// readings as separate discoveries for the Reranker/Branch Judge to
// adjudicate later. The discovery's span is its earliest occurrence,
// anchoring the Reranker/Branch Judge context window; the
// String-Match Expander later re-derives every occurrence from
// whichever concept is chosen.
type Reconciler struct {
	embedder          llm.Embedder
	index             embedindex.Index
	conflictThreshold float64
}

func NewReconciler() *Reconciler {
	return &Reconciler{conflictThreshold: 0.80}
}

// NewReconcilerWithTriage builds a Reconciler that can run embedding
// triage against disagreeing candidates instead of always falling
// back to text-equality merging.
func NewReconcilerWithTriage(embedder llm.Embedder, index embedindex.Index, conflictThreshold float64) *Reconciler {
	return &Reconciler{embedder: embedder, index: index, conflictThreshold: conflictThreshold}
}

func (r *Reconciler) Run(ctx context.Context, candidates []model.ConceptMatch, documentText string) []model.ConceptMatch {
	groups := make(map[string][]model.ConceptMatch)
	var order []string
	for _, c := range candidates {
		key := normalizedSurface(c.SurfaceText)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	// Each discovery proceeds independently from here: a discovery's
	// span is only its earliest-occurrence anchor, so spatial overlap
	// between discoveries of different surface texts carries no
	// conflict. Occurrence-level overlap is settled once, by the
	// String-Match Expander, over final occurrence spans.
	var primaries []model.ConceptMatch
	for _, key := range order {
		primaries = append(primaries, r.reconcileGroup(ctx, groups[key], documentText)...)
	}
	return primaries
}

// reconcileGroup settles one normalized-surface-text group into one or
// more discoveries.
func (r *Reconciler) reconcileGroup(ctx context.Context, group []model.ConceptMatch, documentText string) []model.ConceptMatch {
	byConcept := make(map[string][]model.ConceptMatch)
	var conceptOrder []string
	for _, c := range group {
		if _, ok := byConcept[c.ConceptID]; !ok {
			conceptOrder = append(conceptOrder, c.ConceptID)
		}
		byConcept[c.ConceptID] = append(byConcept[c.ConceptID], c)
	}

	if len(conceptOrder) == 1 {
		return []model.ConceptMatch{r.mergeConcept(byConcept[conceptOrder[0]], nil)}
	}

	winner, ok := r.triage(ctx, group, conceptOrder, documentText)
	if !ok && (r.embedder == nil || r.index == nil || !r.index.Available()) {
		// Text-equality fallback: with no triage available, the group
		// merges under its highest-confidence reading.
		best := group[0]
		for _, c := range group[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
		winner, ok = best.ConceptID, true
	}
	if ok {
		var backups []model.ConceptMatch
		for _, id := range conceptOrder {
			if id != winner {
				backups = append(backups, byConcept[id]...)
			}
		}
		return []model.ConceptMatch{r.mergeConcept(byConcept[winner], backups)}
	}

	// Inconclusive: keep each disputed reading as its own discovery,
	// each carrying the others as backup candidates.
	out := make([]model.ConceptMatch, 0, len(conceptOrder))
	for _, id := range conceptOrder {
		var others []model.ConceptMatch
		for _, other := range conceptOrder {
			if other != id {
				others = append(others, byConcept[other]...)
			}
		}
		out = append(out, r.mergeConcept(byConcept[id], others))
	}
	return out
}

// triage runs the embedding-triage rule for a surface text disputed
// across distinct concepts: it embeds the context window around the
// earliest occurrence and scores each candidate concept's embedding
// against it. Agreement requires the top candidate to lead the
// runner-up by at least triageMargin and clear the configured conflict
// threshold. With no embedder/index configured, it reports no
// agreement so the caller falls back to text-equality merging.
func (r *Reconciler) triage(ctx context.Context, group []model.ConceptMatch, candidateIDs []string, documentText string) (string, bool) {
	if r.embedder == nil || r.index == nil || !r.index.Available() {
		return "", false
	}
	earliest := earliestSpan(group)
	contextText := triageContextWindow(documentText, earliest)
	vector, err := r.embedder.Embed(ctx, contextText)
	if err != nil {
		return "", false
	}
	neighbors, err := r.index.NearestIn(ctx, vector, candidateIDs, len(candidateIDs))
	if err != nil || len(neighbors) == 0 {
		return "", false
	}
	if len(neighbors) == 1 {
		if neighbors[0].Score >= r.conflictThreshold {
			return neighbors[0].ConceptID, true
		}
		return "", false
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
	if neighbors[0].Score >= r.conflictThreshold && neighbors[0].Score-neighbors[1].Score >= triageMargin {
		return neighbors[0].ConceptID, true
	}
	return "", false
}

// triageContextWindow returns a bounded window of text around span,
// standing in for a sentence-level context window.
func triageContextWindow(documentText string, span model.Span) string {
	const window = 200
	start := span.Start - window
	if start < 0 {
		start = 0
	}
	end := span.End + window
	if end > len(documentText) {
		end = len(documentText)
	}
	if start > len(documentText) || end < start {
		return ""
	}
	return documentText[start:end]
}

func earliestSpan(group []model.ConceptMatch) model.Span {
	best := group[0].Span
	for _, m := range group[1:] {
		if m.Span.Start < best.Start {
			best = m.Span
		}
	}
	return best
}

// mergeConcept collapses every occurrence of one concept within a
// surface-text group into a single discovery: sources union, the
// higher confidence, the earliest span, and backups deduplicated from
// extra.
func (r *Reconciler) mergeConcept(occurrences []model.ConceptMatch, extraBackups []model.ConceptMatch) model.ConceptMatch {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Confidence != occurrences[j].Confidence {
			return occurrences[i].Confidence > occurrences[j].Confidence
		}
		return occurrences[i].Span.Start < occurrences[j].Span.Start
	})

	primary := occurrences[0]
	if primary.ID == "" {
		primary.ID = uuid.NewString()
	}
	for _, m := range occurrences[1:] {
		primary.MergeSources(m.Sources)
		if m.Confidence > primary.Confidence {
			primary.Confidence = m.Confidence
		}
		if m.Span.Start < primary.Span.Start {
			primary.Span = m.Span
			primary.SurfaceText = m.SurfaceText
		}
	}
	primary.BackupCandidates = dedupBackups(extraBackups)
	primary.Lineage = append(primary.Lineage, model.LineageEntry{
		Stage:  "reconciler",
		Action: "select_primary",
		After:  primary.ConceptID,
	})
	return primary
}

func dedupBackups(rest []model.ConceptMatch) []model.BackupCandidate {
	ranked := append([]model.ConceptMatch{}, rest...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })
	seen := make(map[string]bool, len(ranked))
	var out []model.BackupCandidate
	for _, m := range ranked {
		if seen[m.ConceptID] {
			continue
		}
		seen[m.ConceptID] = true
		out = append(out, model.BackupCandidate{ConceptID: m.ConceptID, Label: m.Label, Confidence: m.Confidence})
		if len(out) >= model.BackupCandidateTopK {
			break
		}
	}
	return out
}
