package stages

import (
	"testing"

	"github.com/foliolab/enrich/internal/model"
)

func TestIndividualLinkerLinksNearestConcept(t *testing.T) {
	l := NewIndividualLinker()
	individuals := []model.Individual{
		{ID: "i1", Span: model.Span{Start: 100, End: 108}},
	}
	concepts := []model.ConceptMatch{
		{ConceptID: "far", Span: model.Span{Start: 400, End: 410}},
		{ConceptID: "near", Span: model.Span{Start: 80, End: 95}},
	}
	out := l.Run(individuals, concepts)
	if out[0].LinkedConceptID != "near" {
		t.Fatalf("LinkedConceptID = %q, want %q", out[0].LinkedConceptID, "near")
	}
}

func TestIndividualLinkerRespectsWindow(t *testing.T) {
	l := NewIndividualLinker()
	individuals := []model.Individual{
		{ID: "i1", Span: model.Span{Start: 1000, End: 1008}},
	}
	concepts := []model.ConceptMatch{
		{ConceptID: "too-far", Span: model.Span{Start: 0, End: 5}},
	}
	out := l.Run(individuals, concepts)
	if out[0].LinkedConceptID != "" {
		t.Fatalf("expected no link beyond the window, got %q", out[0].LinkedConceptID)
	}
}

func TestIndividualLinkerDoesNotMutateInput(t *testing.T) {
	l := NewIndividualLinker()
	individuals := []model.Individual{{ID: "i1", Span: model.Span{Start: 0, End: 5}}}
	concepts := []model.ConceptMatch{{ConceptID: "c1", Span: model.Span{Start: 6, End: 10}}}
	_ = l.Run(individuals, concepts)
	if individuals[0].LinkedConceptID != "" {
		t.Fatalf("input slice was mutated in place")
	}
}

func TestPropertyLinkerResolvesOverlappingSubject(t *testing.T) {
	l := NewPropertyLinker()
	props := []model.PropertyAnnotation{
		{ID: "p1", SubjectSpan: model.Span{Start: 10, End: 20}},
	}
	individuals := []model.Individual{
		{ID: "ind1", Span: model.Span{Start: 15, End: 25}},
	}
	out := l.Run(props, individuals)
	if out[0].SubjectIndividualID != "ind1" {
		t.Fatalf("SubjectIndividualID = %q, want %q", out[0].SubjectIndividualID, "ind1")
	}
}

func TestPropertyLinkerNoOverlapLeavesEmpty(t *testing.T) {
	l := NewPropertyLinker()
	props := []model.PropertyAnnotation{
		{ID: "p1", SubjectSpan: model.Span{Start: 10, End: 20}},
	}
	individuals := []model.Individual{
		{ID: "ind1", Span: model.Span{Start: 100, End: 110}},
	}
	out := l.Run(props, individuals)
	if out[0].SubjectIndividualID != "" {
		t.Fatalf("expected no subject link, got %q", out[0].SubjectIndividualID)
	}
}
