package stages

import "github.com/foliolab/enrich/internal/model"

// linkerWindow bounds how far an Individual may be from a role concept
// match for the Individual Linker to associate the two.
const linkerWindow = 200

// IndividualLinker is the Phase 3 Individual Linker: it associates
// each extracted Individual with the nearest ConceptMatch within
// linkerWindow characters (e.g. "plaintiff", "presiding judge"), so
// downstream consumers know not just that a name was mentioned but
// what part it plays in the document. Any concept match qualifies:
// neither the concept's meaning nor the match's state is checked.
type IndividualLinker struct{}

func NewIndividualLinker() *IndividualLinker { return &IndividualLinker{} }

func (l *IndividualLinker) Run(individuals []model.Individual, concepts []model.ConceptMatch) []model.Individual {
	out := make([]model.Individual, len(individuals))
	copy(out, individuals)
	for i := range out {
		if nearest, ok := nearestConcept(out[i].Span, concepts); ok {
			out[i].LinkedConceptID = nearest.ConceptID
		}
	}
	return out
}

func nearestConcept(span model.Span, concepts []model.ConceptMatch) (model.ConceptMatch, bool) {
	var best model.ConceptMatch
	bestDist := -1
	found := false
	for _, c := range concepts {
		var dist int
		switch {
		case c.Span.End <= span.Start:
			dist = span.Start - c.Span.End
		case c.Span.Start >= span.End:
			dist = c.Span.Start - span.End
		default:
			dist = 0
		}
		if dist > linkerWindow {
			continue
		}
		if !found || dist < bestDist {
			best = c
			bestDist = dist
			found = true
		}
	}
	return best, found
}

// PropertyLinker is the Phase 3 Property Linker: it resolves a
// PropertyAnnotation's subject span to the Individual occupying that
// span, when one overlaps it, so a property value can be traced back
// to a specific named entity rather than only a span of text.
type PropertyLinker struct{}

func NewPropertyLinker() *PropertyLinker { return &PropertyLinker{} }

// ResolvedProperty pairs a PropertyAnnotation with the Individual ID
// that occupies its subject span, when one is found.
type ResolvedProperty struct {
	model.PropertyAnnotation
	SubjectIndividualID string
}

func (l *PropertyLinker) Run(props []model.PropertyAnnotation, individuals []model.Individual) []ResolvedProperty {
	out := make([]ResolvedProperty, 0, len(props))
	for _, p := range props {
		resolved := ResolvedProperty{PropertyAnnotation: p}
		for _, ind := range individuals {
			if ind.Span.Overlaps(p.SubjectSpan) {
				resolved.SubjectIndividualID = ind.ID
				break
			}
		}
		out = append(out, resolved)
	}
	return out
}
