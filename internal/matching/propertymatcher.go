package matching

import (
	"context"

	"github.com/google/uuid"

	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

// proximityWindow bounds how far a property label occurrence may be
// from a candidate subject ConceptMatch for the two to be paired into
// a PropertyAnnotation.
const proximityWindow = 400

// PropertyMatcher is the lexical stage that proposes PropertyAnnotations:
// it scans text for occurrences of property-concept labels (e.g.
// "statute", "docket number") and pairs each with the nearest concept
// match preceding it (or the nearest following one when none precedes
// it within the window), the same way the Ruler pairs entity labels with
// spans, but restricted to concepts the ontology marks IsProperty.
type PropertyMatcher struct {
	automaton *Automaton
}

func NewPropertyMatcher(ctx context.Context, accessor ontology.Accessor, hyphenAsWordChar bool) (*PropertyMatcher, error) {
	entries, err := accessor.AllLabels(ctx)
	if err != nil {
		return nil, err
	}
	patterns := make([]Pattern, 0)
	for _, e := range entries {
		c, err := accessor.Concept(ctx, e.ConceptID)
		if err != nil || !c.IsProperty {
			continue
		}
		patterns = append(patterns, Pattern{
			Text:        e.Label,
			ConceptID:   e.ConceptID,
			Label:       e.Label,
			IsPreferred: e.IsPreferred,
		})
	}
	return &PropertyMatcher{automaton: Build(patterns, hyphenAsWordChar)}, nil
}

// Run scans text for property label occurrences and pairs each with
// the nearest subject ConceptMatch within proximityWindow characters,
// preferring the closest preceding match and falling back to the
// closest following one.
func (p *PropertyMatcher) Run(text string, subjects []model.ConceptMatch) []model.PropertyAnnotation {
	raw := p.automaton.FindAll(text)
	out := make([]model.PropertyAnnotation, 0, len(raw))
	for _, m := range raw {
		subject, ok := nearestSubject(subjects, m.Start)
		if !ok {
			continue
		}
		ann := model.PropertyAnnotation{
			ID:                uuid.NewString(),
			SubjectSpan:       subject.Span,
			PropertyConceptID: m.ConceptID,
			PreferredLabel:    m.Label,
			ValueSpan:         model.Span{Start: m.Start, End: m.End},
			Confidence:        rulerConfidence(m),
		}
		ann.AddSource(model.SourceRuler)
		out = append(out, ann)
	}
	return ResolvePropertyOverlaps(out)
}

func nearestSubject(subjects []model.ConceptMatch, pos int) (model.ConceptMatch, bool) {
	var best model.ConceptMatch
	bestDist := -1
	bestPreceding := false
	found := false
	for _, s := range subjects {
		var dist int
		if s.Span.End <= pos {
			dist = pos - s.Span.End
		} else if s.Span.Start >= pos {
			dist = s.Span.Start - pos
		} else {
			dist = 0
		}
		if dist > proximityWindow {
			continue
		}
		preceding := s.Span.Start < pos
		if !found || (preceding && !bestPreceding) || (preceding == bestPreceding && dist < bestDist) {
			best = s
			bestDist = dist
			bestPreceding = preceding
			found = true
		}
	}
	return best, found
}
