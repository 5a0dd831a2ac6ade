package matching

import (
	"sort"

	"github.com/foliolab/enrich/internal/model"
)

type spanEntry[T any] struct {
	value T
	span  model.Span
}

// resolveOverlaps applies the containment-aware overlap resolution
// rule shared by the Ruler/Expander (over ConceptMatch spans) and the
// Property Matcher (over PropertyAnnotation value spans): a span fully
// contained within another survives alongside it (nested concepts,
// e.g. "United States District Court" containing "District Court"),
// but when two spans partially overlap without containment, only one
// survives — the longer span, or the earlier-starting one on a length
// tie.
func resolveOverlaps[T any](items []T, spanOf func(T) model.Span) []T {
	if len(items) <= 1 {
		return items
	}
	sorted := make([]spanEntry[T], len(items))
	for i, it := range items {
		sorted[i] = spanEntry[T]{value: it, span: spanOf(it)}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].span.Start != sorted[j].span.Start {
			return sorted[i].span.Start < sorted[j].span.Start
		}
		return sorted[i].span.Len() > sorted[j].span.Len()
	})

	dropped := make([]bool, len(sorted))
	for i := range sorted {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			if dropped[j] {
				continue
			}
			a, b := sorted[i].span, sorted[j].span
			if !a.Overlaps(b) {
				continue
			}
			if a.Contains(b) || b.Contains(a) {
				continue // nested: both survive
			}
			// Partial overlap without containment: keep the longer,
			// earlier-starting span.
			if b.Len() > a.Len() {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}

	out := make([]T, 0, len(sorted))
	for i, m := range sorted {
		if !dropped[i] {
			out = append(out, m.value)
		}
	}
	return out
}

// ResolveOverlaps applies containment-aware overlap resolution to a
// set of ConceptMatches, keyed by Span.
func ResolveOverlaps(matches []model.ConceptMatch) []model.ConceptMatch {
	return resolveOverlaps(matches, func(m model.ConceptMatch) model.Span { return m.Span })
}

// ResolvePropertyOverlaps applies the same containment-aware overlap
// resolution to a set of PropertyAnnotations, keyed by ValueSpan, per
// the Property Matcher's "same containment-aware overlap policy as the
// String-Match Expander" rule.
func ResolvePropertyOverlaps(props []model.PropertyAnnotation) []model.PropertyAnnotation {
	return resolveOverlaps(props, func(p model.PropertyAnnotation) model.Span { return p.ValueSpan })
}
