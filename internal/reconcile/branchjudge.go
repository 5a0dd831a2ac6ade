package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

const branchJudgeSystemPrompt = `You choose which one of a set of candidate ontology branches best classifies a span of text in context. Respond with JSON: {"chosen_branch": "<branch name>", "judge_score": <0-1 float>}. Omit judge_score if you cannot confidently score the choice.`

// BranchJudge disambiguates branch membership for annotations whose
// resolved concept belongs to two or more plausible branches (e.g. a
// concept classified under both "Actor" and "Document"). It presents
// the candidate branches to an LM and fuses any returned judge_score
// into the prior confidence as new = 0.7*prior + 0.3*judge_score. When
// the LM declines to score its choice, the prior confidence passes
// through unchanged — no fusion is applied.
type BranchJudge struct {
	chain    *llm.Chain
	accessor ontology.Accessor
}

func NewBranchJudge(chain *llm.Chain, accessor ontology.Accessor) *BranchJudge {
	return &BranchJudge{chain: chain, accessor: accessor}
}

// Run judges branch membership whenever the annotation has two or
// more candidate branches — that is the only gate; it does not depend
// on how confident the resolver was. The second return value reports
// whether an LM call was actually attempted, so callers can count LM
// usage accurately even when Run short-circuits on a single branch.
func (b *BranchJudge) Run(ctx context.Context, resolved Resolved, documentText string, sentences []model.Span) (Resolved, bool, error) {
	branches := resolved.Branches
	if len(branches) < 2 && b.accessor != nil {
		fetched, err := b.accessor.BranchesFor(ctx, resolved.ConceptID)
		if err == nil {
			branches = fetched
		}
	}
	if len(branches) < 2 {
		return resolved, false, nil
	}

	contextText := sentenceContext(documentText, sentences, resolved.Span, 0)

	var parsed struct {
		ChosenBranch string   `json:"chosen_branch"`
		JudgeScore   *float64 `json:"judge_score"`
	}
	if _, err := b.chain.CompleteJSON(ctx, "branch_judge", llm.Request{
		Task:         "branch_judge",
		SystemPrompt: branchJudgeSystemPrompt,
		UserPrompt: fmt.Sprintf(
			"Concept: %s (%s)\nCandidate branches: %s\nContext (highlighted span marked with [[ ]]):\n%s",
			resolved.ConceptID, resolved.Label, strings.Join(branches, ", "), contextText,
		),
		MaxTokens: 96,
	}, &parsed); err != nil {
		return resolved, true, err
	}

	chosen := parsed.ChosenBranch
	if !containsBranch(branches, chosen) {
		return resolved, true, nil
	}
	resolved = selectBranch(resolved, branches, chosen)

	if parsed.JudgeScore == nil {
		// No fusion applied; prior confidence stands.
		return resolved, true, nil
	}

	prior := resolved.Confidence
	updated := 0.7*prior + 0.3*(*parsed.JudgeScore)
	resolved.Confidence = updated
	resolved.Composite = updated
	resolved.AddSource(model.SourceLLM)
	resolved.Lineage = append(resolved.Lineage, model.LineageEntry{
		Stage:  "branch_judge",
		Action: "fuse_judge_score",
		Before: prior,
		After:  updated,
	})
	return resolved, true, nil
}

func containsBranch(branches []string, target string) bool {
	for _, b := range branches {
		if b == target {
			return true
		}
	}
	return false
}

// selectBranch replaces the annotation's branches with the single
// chosen branch, demoting the rest to backup_branches.
func selectBranch(resolved Resolved, branches []string, chosen string) Resolved {
	losers := make([]string, 0, len(branches)-1)
	for _, b := range branches {
		if b != chosen {
			losers = append(losers, b)
		}
	}
	before := append([]string{}, branches...)
	resolved.Branches = []string{chosen}
	resolved.BackupBranches = losers
	resolved.Lineage = append(resolved.Lineage, model.LineageEntry{
		Stage:  "branch_judge",
		Action: "select_branch",
		Before: before,
		After:  chosen,
	})
	return resolved
}
