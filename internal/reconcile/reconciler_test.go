package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/model"
)

func TestReconcilerRun_PicksHighestConfidencePrimary(t *testing.T) {
	span := model.Span{Start: 0, End: 5}
	candidates := []model.ConceptMatch{
		{ConceptID: "low", SurfaceText: "term", Span: span, Confidence: 0.3},
		{ConceptID: "high", SurfaceText: "term", Span: span, Confidence: 0.9},
		{ConceptID: "mid", SurfaceText: "term", Span: span, Confidence: 0.5},
	}

	out := NewReconciler().Run(context.Background(), candidates, "term")
	require.Len(t, out, 1, "no embedder configured falls back to text-equality merging")
	assert.Equal(t, "high", out[0].ConceptID)
	assert.NotEmpty(t, out[0].ID)
	require.Len(t, out[0].BackupCandidates, 2)
	assert.Equal(t, "mid", out[0].BackupCandidates[0].ConceptID)
	assert.Equal(t, "low", out[0].BackupCandidates[1].ConceptID)
}

func TestReconcilerRun_BackupsDedupedAndCappedAtTopK(t *testing.T) {
	span := model.Span{Start: 0, End: 5}
	candidates := []model.ConceptMatch{
		{ConceptID: "primary", SurfaceText: "term", Span: span, Confidence: 1.0},
	}
	for i := 0; i < model.BackupCandidateTopK+3; i++ {
		candidates = append(candidates, model.ConceptMatch{ConceptID: "dup", SurfaceText: "term", Span: span, Confidence: 0.5})
	}

	out := NewReconciler().Run(context.Background(), candidates, "term")
	require.Len(t, out, 1)
	assert.LessOrEqual(t, len(out[0].BackupCandidates), model.BackupCandidateTopK)
	assert.Len(t, out[0].BackupCandidates, 1, "identical concept ids dedup to a single backup entry")
}

func TestReconcilerRun_DistinctSpansSurvive(t *testing.T) {
	candidates := []model.ConceptMatch{
		{ConceptID: "a", SurfaceText: "alpha", Span: model.Span{Start: 0, End: 5}, Confidence: 0.9},
		{ConceptID: "b", SurfaceText: "beta", Span: model.Span{Start: 20, End: 25}, Confidence: 0.8},
	}
	out := NewReconciler().Run(context.Background(), candidates, "alpha ...beta")
	assert.Len(t, out, 2)
}

func TestReconcilerRun_SameSurfaceTextCollapsesAcrossDocument(t *testing.T) {
	candidates := []model.ConceptMatch{
		{ConceptID: "court", SurfaceText: "Court", Span: model.Span{Start: 0, End: 5}, Confidence: 0.9},
		{ConceptID: "court", SurfaceText: "court", Span: model.Span{Start: 50, End: 55}, Confidence: 0.85},
		{ConceptID: "court", SurfaceText: "COURT", Span: model.Span{Start: 100, End: 105}, Confidence: 0.95},
	}
	out := NewReconciler().Run(context.Background(), candidates, "text")
	require.Len(t, out, 1, "repeated occurrences of the same surface text resolve exactly once")
	assert.Equal(t, 0, out[0].Span.Start, "the earliest occurrence anchors the discovery")
	assert.Equal(t, 0.95, out[0].Confidence)
}
