package matching

import (
	"context"

	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

// Confidence schedule the Ruler assigns a match purely from its
// surface form: a multi-word match against a concept's preferred
// label is the strongest signal available before any LM or embedding
// judgment runs; a single-word match against an alternate label is the
// weakest.
const (
	ConfidenceMultiWordPreferred  = 0.90
	ConfidenceSingleWordPreferred = 0.72
	ConfidenceMultiWordAlt        = 0.65
	ConfidenceSingleWordAlt       = 0.35
)

// Ruler is the lexical, dictionary-matching stage: it scans a
// document's normalized text for every occurrence of every ontology
// concept label and proposes a ConceptMatch per occurrence, before any
// language model runs.
type Ruler struct {
	automaton *Automaton
}

// NewRuler builds a Ruler's automaton from every non-property label in
// the ontology.
func NewRuler(ctx context.Context, accessor ontology.Accessor, hyphenAsWordChar bool) (*Ruler, error) {
	entries, err := accessor.AllLabels(ctx)
	if err != nil {
		return nil, err
	}
	patterns := make([]Pattern, 0, len(entries))
	for _, e := range entries {
		c, err := accessor.Concept(ctx, e.ConceptID)
		if err == nil && c.IsProperty {
			continue
		}
		patterns = append(patterns, Pattern{
			Text:        e.Label,
			ConceptID:   e.ConceptID,
			Label:       e.Label,
			IsPreferred: e.IsPreferred,
		})
	}
	return &Ruler{automaton: Build(patterns, hyphenAsWordChar)}, nil
}

// Run scans text and returns one ConceptMatch per surviving surface
// match, after containment-aware overlap resolution.
func (r *Ruler) Run(text string) []model.ConceptMatch {
	raw := r.automaton.FindAll(text)
	matches := make([]model.ConceptMatch, 0, len(raw))
	for _, m := range raw {
		match := model.ConceptMatch{
			ConceptID:      m.ConceptID,
			Label:          m.Label,
			PreferredLabel: m.Label,
			SurfaceText:    model.Span{Start: m.Start, End: m.End}.Text(text),
			Span:           model.Span{Start: m.Start, End: m.End},
			Confidence:     rulerConfidence(m),
			MatchType:      rulerMatchType(m),
			State:          model.StatePreliminary,
		}
		match.AddSource(model.SourceRuler)
		matches = append(matches, match)
	}
	return ResolveOverlaps(matches)
}

func rulerMatchType(m Match) model.MatchType {
	if m.IsPreferred {
		return model.MatchTypePreferredLabel
	}
	return model.MatchTypeAltLabel
}

func rulerConfidence(m Match) float64 {
	switch {
	case m.IsPreferred && m.WordCount > 1:
		return ConfidenceMultiWordPreferred
	case m.IsPreferred:
		return ConfidenceSingleWordPreferred
	case m.WordCount > 1:
		return ConfidenceMultiWordAlt
	default:
		return ConfidenceSingleWordAlt
	}
}
