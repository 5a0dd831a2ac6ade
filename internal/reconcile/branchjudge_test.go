package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

type fakeBranchAccessor struct {
	branches map[string][]string
}

func (f fakeBranchAccessor) Concept(ctx context.Context, id string) (*ontology.Concept, error) {
	return &ontology.Concept{ID: id, Branches: f.branches[id]}, nil
}
func (f fakeBranchAccessor) ConceptsByLabel(ctx context.Context, label string) ([]*ontology.Concept, error) {
	return nil, nil
}
func (f fakeBranchAccessor) AllLabels(ctx context.Context) ([]ontology.LabelEntry, error) {
	return nil, nil
}
func (f fakeBranchAccessor) IsDescendant(ctx context.Context, candidateID, ancestorID string) (bool, error) {
	return candidateID == ancestorID, nil
}
func (f fakeBranchAccessor) Version() string { return "test" }
func (f fakeBranchAccessor) BranchesFor(ctx context.Context, id string) ([]string, error) {
	return f.branches[id], nil
}

func TestBranchJudgeRun_SkipsWithFewerThanTwoBranches(t *testing.T) {
	chain := llm.NewChain(false, fakeProvider{response: `{"chosen_branch":"Actor","judge_score":0.9}`, name: "fake"})
	accessor := fakeBranchAccessor{branches: map[string][]string{"c1": {"Actor"}}}
	bj := NewBranchJudge(chain, accessor)

	resolved := Resolved{ConceptMatch: model.ConceptMatch{ConceptID: "c1", Confidence: 0.5}}
	out, called, err := bj.Run(context.Background(), resolved, "document text", nil)
	require.NoError(t, err)
	assert.False(t, called, "fewer than two candidate branches must not trigger an LM call")
	assert.Equal(t, 0.5, out.Confidence)
}

func TestBranchJudgeRun_FusesJudgeScoreAndSelectsBranch(t *testing.T) {
	// Branch blend: branches = {"Actor", "Document"}, prior
	// confidence 0.6, judge picks Actor with score 0.9 -> 0.69.
	chain := llm.NewChain(false, fakeProvider{response: `{"chosen_branch":"Actor","judge_score":0.9}`, name: "fake"})
	accessor := fakeBranchAccessor{branches: map[string][]string{"c1": {"Actor", "Document"}}}
	bj := NewBranchJudge(chain, accessor)

	resolved := Resolved{
		ConceptMatch: model.ConceptMatch{
			ConceptID:  "c1",
			Confidence: 0.6,
			Span:       model.Span{Start: 0, End: 4},
			Branches:   []string{"Actor", "Document"},
		},
	}
	out, called, err := bj.Run(context.Background(), resolved, "text here", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.InDelta(t, 0.69, out.Confidence, 1e-9)
	assert.Equal(t, []string{"Actor"}, out.Branches)
	assert.Equal(t, []string{"Document"}, out.BackupBranches)
	assert.Equal(t, "c1", out.ConceptID, "branch disambiguation never changes the resolved concept")
}

func TestBranchJudgeRun_NoFusionWhenJudgeScoreAbsent(t *testing.T) {
	chain := llm.NewChain(false, fakeProvider{response: `{"chosen_branch":"Actor"}`, name: "fake"})
	accessor := fakeBranchAccessor{branches: map[string][]string{"c1": {"Actor", "Document"}}}
	bj := NewBranchJudge(chain, accessor)

	resolved := Resolved{
		ConceptMatch: model.ConceptMatch{
			ConceptID:  "c1",
			Confidence: 0.5,
			Span:       model.Span{Start: 0, End: 4},
			Branches:   []string{"Actor", "Document"},
		},
	}
	out, called, err := bj.Run(context.Background(), resolved, "text here", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 0.5, out.Confidence, "an absent judge_score must leave the prior confidence unchanged")
	assert.Equal(t, []string{"Actor"}, out.Branches, "the branch choice itself still applies without fusion")
}

func TestBranchJudgeRun_IgnoresUnknownChosenBranch(t *testing.T) {
	chain := llm.NewChain(false, fakeProvider{response: `{"chosen_branch":"Nonexistent","judge_score":0.9}`, name: "fake"})
	accessor := fakeBranchAccessor{branches: map[string][]string{"c1": {"Actor", "Document"}}}
	bj := NewBranchJudge(chain, accessor)

	resolved := Resolved{
		ConceptMatch: model.ConceptMatch{
			ConceptID:  "c1",
			Confidence: 0.5,
			Span:       model.Span{Start: 0, End: 4},
			Branches:   []string{"Actor", "Document"},
		},
	}
	out, called, err := bj.Run(context.Background(), resolved, "text here", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 0.5, out.Confidence)
	assert.Equal(t, []string{"Actor", "Document"}, out.Branches)
}
