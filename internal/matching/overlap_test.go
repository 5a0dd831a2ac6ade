package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foliolab/enrich/internal/model"
)

func TestResolveOverlaps_NestedSpansSurvive(t *testing.T) {
	matches := []model.ConceptMatch{
		{ConceptID: "outer", Span: model.Span{Start: 0, End: 20}},
		{ConceptID: "inner", Span: model.Span{Start: 5, End: 10}},
	}
	got := ResolveOverlaps(matches)
	assert.Len(t, got, 2)
}

func TestResolveOverlaps_PartialOverlapKeepsLonger(t *testing.T) {
	matches := []model.ConceptMatch{
		{ConceptID: "short", Span: model.Span{Start: 0, End: 10}},
		{ConceptID: "long", Span: model.Span{Start: 5, End: 30}},
	}
	got := ResolveOverlaps(matches)
	assert.Len(t, got, 1)
	assert.Equal(t, "long", got[0].ConceptID)
}

func TestResolveOverlaps_TieKeepsEarlierStart(t *testing.T) {
	matches := []model.ConceptMatch{
		{ConceptID: "first", Span: model.Span{Start: 0, End: 10}},
		{ConceptID: "second", Span: model.Span{Start: 5, End: 15}},
	}
	got := ResolveOverlaps(matches)
	assert.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ConceptID)
}

func TestResolveOverlaps_DisjointSpansBothSurvive(t *testing.T) {
	matches := []model.ConceptMatch{
		{ConceptID: "a", Span: model.Span{Start: 0, End: 5}},
		{ConceptID: "b", Span: model.Span{Start: 10, End: 15}},
	}
	got := ResolveOverlaps(matches)
	assert.Len(t, got, 2)
}
