package matching

import (
	"github.com/foliolab/enrich/internal/model"
)

// AltLabelExpansionScale is the confidence multiplier applied to a
// concept's confirmed prior confidence when the String-Match Expander
// proposes a new occurrence from a bare alternate-label match
// elsewhere in the document.
const AltLabelExpansionScale = 0.95

// Expander is the Phase 3 String-Match Expander: once the Reconciler
// and Resolver have settled on a confirmed ConceptMatch for a span, the
// Expander looks for additional plain-text occurrences of that same
// concept's labels elsewhere in the document (e.g. a party referred to
// by full name once and by surname everywhere after), using the same
// automaton the Ruler built.
type Expander struct {
	automaton *Automaton
	scale     float64
}

func NewExpander(automaton *Automaton, scale float64) *Expander {
	if scale <= 0 {
		scale = AltLabelExpansionScale
	}
	return &Expander{automaton: automaton, scale: scale}
}

// Run scans text for labels belonging to any concept in confirmed and
// returns new ConceptMatch entries for every occurrence found, each at
// confirmed confidence * scale. It does not pre-filter raw hits by
// spatial overlap with confirmed spans: a hit nested inside, or
// overlapping, a different concept's confirmed span is still a
// legitimate expansion candidate (e.g. a party's surname expanded
// inside a sentence that also confirms a court name around it).
// Identical (span, concept) pairs collapse into the confirmed
// annotation with merged sources; containment and partial overlap are
// then resolved by ResolveOverlaps.
func (e *Expander) Run(text string, confirmed []model.ConceptMatch) []model.ConceptMatch {
	confidenceByConcept := make(map[string]float64, len(confirmed))
	for _, c := range confirmed {
		if v, ok := confidenceByConcept[c.ConceptID]; !ok || c.Confidence > v {
			confidenceByConcept[c.ConceptID] = c.Confidence
		}
	}

	raw := e.automaton.FindAll(text)
	var expanded []model.ConceptMatch
	for _, m := range raw {
		baseConf, known := confidenceByConcept[m.ConceptID]
		if !known {
			continue
		}
		span := model.Span{Start: m.Start, End: m.End}
		conf := baseConf
		if !m.IsPreferred {
			conf *= e.scale
		}
		match := model.ConceptMatch{
			ConceptID:      m.ConceptID,
			Label:          m.Label,
			PreferredLabel: m.Label,
			SurfaceText:    span.Text(text),
			Span:           span,
			Confidence:     conf,
			MatchType:      model.MatchTypeExpanded,
			State:          model.StatePreliminary,
		}
		match.AddSource(model.SourceStringMatch)
		expanded = append(expanded, match)
	}

	// The automaton re-finds every confirmed match's label at its own
	// span, so each confirmed annotation has an expanded twin at an
	// identical (span, concept). Identical pairs collapse to one
	// annotation with merged sources; confirmed entries come first, so
	// the survivor keeps its id, lineage and confidence.
	merged := append(append([]model.ConceptMatch{}, confirmed...), expanded...)
	type spanConcept struct {
		start, end int
		conceptID  string
	}
	seen := make(map[spanConcept]int, len(merged))
	deduped := make([]model.ConceptMatch, 0, len(merged))
	for _, m := range merged {
		key := spanConcept{m.Span.Start, m.Span.End, m.ConceptID}
		if i, ok := seen[key]; ok {
			deduped[i].MergeSources(m.Sources)
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, m)
	}
	for i := range deduped {
		deduped[i].AddSource(model.SourceStringMatch)
	}
	return ResolveOverlaps(deduped)
}
