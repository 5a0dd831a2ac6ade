package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/model"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeIndex struct {
	neighbors []embedindex.Neighbor
}

func (f fakeIndex) Nearest(ctx context.Context, vector []float32, k int) ([]embedindex.Neighbor, error) {
	return f.neighbors, nil
}
func (f fakeIndex) NearestIn(ctx context.Context, vector []float32, candidateIDs []string, k int) ([]embedindex.Neighbor, error) {
	wanted := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		wanted[id] = true
	}
	var out []embedindex.Neighbor
	for _, n := range f.neighbors {
		if wanted[n.ConceptID] {
			out = append(out, n)
		}
	}
	return out, nil
}
func (f fakeIndex) Available() bool { return len(f.neighbors) > 0 }

func TestResolverRun_DegradesToLexicalWithoutEmbedder(t *testing.T) {
	r := NewResolver(nil, embedindex.NewMemoryIndex(), 0.80)
	matches := []model.ConceptMatch{{ConceptID: "c1", Confidence: 0.72}}

	out := r.Run(context.Background(), matches, "some document text")
	require.Len(t, out, 1)
	assert.InDelta(t, 0.72, out[0].Composite, 1e-9, "with no embedder, semantic score equals lexical confidence so composite collapses to the lexical value")
	assert.True(t, out[0].NeedsJudgment)
}

func TestResolverRun_CompositeFormula(t *testing.T) {
	idx := fakeIndex{neighbors: []embedindex.Neighbor{{ConceptID: "c1", Score: 0.80}}}
	r := NewResolver(fakeEmbedder{}, idx, 0.80)
	matches := []model.ConceptMatch{{
		ConceptID:  "c1",
		Confidence: 0.90,
		Span:       model.Span{Start: 0, End: 4},
	}}

	out := r.Run(context.Background(), matches, "text")
	require.Len(t, out, 1)
	want := 0.6*0.90 + 0.4*0.80
	assert.InDelta(t, want, out[0].Composite, 1e-9)
	assert.False(t, out[0].NeedsJudgment)
}

func TestResolverRun_BelowThresholdFlagsJudgment(t *testing.T) {
	idx := fakeIndex{neighbors: []embedindex.Neighbor{{ConceptID: "other", Score: 0.9}}}
	r := NewResolver(fakeEmbedder{}, idx, 0.80)
	matches := []model.ConceptMatch{{
		ConceptID:  "c1",
		Confidence: 0.65,
		Span:       model.Span{Start: 0, End: 4},
	}}

	out := r.Run(context.Background(), matches, "text")
	require.Len(t, out, 1)
	want := 0.6*0.65 + 0.4*0.0
	assert.InDelta(t, want, out[0].Composite, 1e-9)
	assert.True(t, out[0].NeedsJudgment)
}
