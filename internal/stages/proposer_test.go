package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

type fakeProvider struct {
	response string
}

func (f fakeProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: f.response, Provider: "fake"}, nil
}
func (f fakeProvider) Name() string { return "fake" }

type fakeEmbedder struct{ vector []float32 }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

type fakeAccessor struct {
	concepts map[string]*ontology.Concept
}

func (f fakeAccessor) Concept(_ context.Context, id string) (*ontology.Concept, error) {
	c, ok := f.concepts[id]
	if !ok {
		return nil, assertErr{}
	}
	return c, nil
}
func (f fakeAccessor) ConceptsByLabel(context.Context, string) ([]*ontology.Concept, error) {
	return nil, nil
}
func (f fakeAccessor) AllLabels(context.Context) ([]ontology.LabelEntry, error) { return nil, nil }
func (f fakeAccessor) IsDescendant(_ context.Context, a, b string) (bool, error) {
	return a == b, nil
}
func (f fakeAccessor) Version() string                                     { return "test" }
func (f fakeAccessor) BranchesFor(context.Context, string) ([]string, error) { return nil, nil }

type assertErr struct{}

func (assertErr) Error() string { return "not found" }

func TestProposerRun_EmbeddingTriageLocatesVerbatimSpan(t *testing.T) {
	idx := embedindex.NewMemoryIndex()
	idx.Add("c1", []float32{1, 0, 0})
	idx.Add("c2", []float32{0, 1, 0})
	accessor := fakeAccessor{concepts: map[string]*ontology.Concept{
		"c1": {ID: "c1", PrefLabel: "Motion to Dismiss"},
	}}
	p := NewProposer(idx, fakeEmbedder{vector: []float32{1, 0, 0}}, llm.NewChain(false, fakeProvider{}), accessor, 0.05)

	chunk := model.Chunk{Text: "The defendant filed a Motion to Dismiss yesterday.", Span: model.Span{Start: 100, End: 151}}
	out, err := p.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ConceptID)
	assert.Equal(t, "Motion to Dismiss", out[0].SurfaceText)
	assert.Equal(t, 100+22, out[0].Span.Start, "span must anchor to the verbatim occurrence, not the whole chunk")
	assert.Equal(t, model.MatchTypeSemantic, out[0].MatchType)
	assert.Contains(t, out[0].Sources, model.SourceSemantic)
}

func TestProposerRun_FallsThroughToLMWhenTriageLabelAbsentFromChunk(t *testing.T) {
	idx := embedindex.NewMemoryIndex()
	idx.Add("c1", []float32{1, 0, 0})
	idx.Add("c2", []float32{0, 1, 0})
	accessor := fakeAccessor{concepts: map[string]*ontology.Concept{
		"c1": {ID: "c1", PrefLabel: "Something Not In The Chunk"},
	}}
	chunk := model.Chunk{Text: "The motion was granted.", Span: model.Span{Start: 0, End: 23}}
	chain := llm.NewChain(false, fakeProvider{response: `{"concept_id":"c1","concept_text":"motion","confidence":0.8}`})
	p := NewProposer(idx, fakeEmbedder{vector: []float32{1, 0, 0}}, chain, accessor, 0.05)

	out, err := p.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "motion", out[0].SurfaceText)
	assert.Equal(t, model.MatchTypeLLM, out[0].MatchType)
}

func TestProposerRun_DiscardsLMResponseWhoseConceptTextIsNotASubstring(t *testing.T) {
	idx := embedindex.NewMemoryIndex()
	chain := llm.NewChain(false, fakeProvider{response: `{"concept_id":"c1","concept_text":"nowhere in the chunk","confidence":0.9}`})
	accessor := fakeAccessor{concepts: map[string]*ontology.Concept{"c1": {ID: "c1", PrefLabel: "C1"}}}
	p := NewProposer(idx, nil, chain, accessor, 0.05)

	chunk := model.Chunk{Text: "Totally unrelated text.", Span: model.Span{Start: 0, End: 23}}
	out, err := p.Run(context.Background(), chunk)
	require.NoError(t, err)
	assert.Nil(t, out, "a concept_text absent from the chunk must be discarded, never anchored to the chunk span")
}

func TestProposerRun_ClampsConfidence(t *testing.T) {
	idx := embedindex.NewMemoryIndex()
	chain := llm.NewChain(false, fakeProvider{response: `{"concept_id":"c1","concept_text":"motion","confidence":1.5}`})
	accessor := fakeAccessor{concepts: map[string]*ontology.Concept{"c1": {ID: "c1", PrefLabel: "C1"}}}
	p := NewProposer(idx, nil, chain, accessor, 0.05)

	chunk := model.Chunk{Text: "motion filed", Span: model.Span{Start: 0, End: 12}}
	out, err := p.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.99, out[0].Confidence)
}
