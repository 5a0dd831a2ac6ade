package reconcile

import (
	"context"
	"fmt"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

// Rubric anchors the Reranker's LM judgment maps onto, from "clearly
// correct" to "clearly wrong".
const (
	RubricClearlyCorrect = 0.95
	RubricLikelyCorrect  = 0.70
	RubricUncertain       = 0.40
	RubricLikelyWrong     = 0.20
)

const rerankerSystemPrompt = `You judge whether a proposed ontology concept correctly describes a highlighted span of text, given its surrounding context. Respond with JSON: {"rubric": "clearly_correct" | "likely_correct" | "uncertain" | "likely_wrong"}.`

// Reranker fuses a match's prior composite confidence with an LM's
// contextual judgment in equal parts: new = 0.5*prior + 0.5*context,
// where context is the rubric anchor the LM's judgment maps to. It
// judges every resolved match, not just the ones flagged as
// low-confidence.
type Reranker struct {
	chain *llm.Chain
}

func NewReranker(chain *llm.Chain) *Reranker {
	return &Reranker{chain: chain}
}

// Run judges one resolved match against its surrounding text: the
// sentence containing the span plus one sentence on either side, per
// sentenceContext's fallback rules.
func (r *Reranker) Run(ctx context.Context, resolved Resolved, documentText string, sentences []model.Span) (Resolved, error) {
	contextText := sentenceContext(documentText, sentences, resolved.Span, 1)

	var parsed struct {
		Rubric string `json:"rubric"`
	}
	if _, err := r.chain.CompleteJSON(ctx, "reranker", llm.Request{
		Task:         "rerank",
		SystemPrompt: rerankerSystemPrompt,
		UserPrompt:   fmt.Sprintf("Proposed concept: %s (%s)\nContext (highlighted span marked with [[ ]]):\n%s", resolved.ConceptID, resolved.Label, contextText),
		MaxTokens:    64,
	}, &parsed); err != nil {
		return resolved, err
	}

	contextScore, ok := rubricScore(parsed.Rubric)
	if !ok {
		return resolved, nil
	}

	prior := resolved.Composite
	updated := 0.5*prior + 0.5*contextScore
	resolved.Composite = updated
	resolved.Confidence = updated
	resolved.AddSource(model.SourceLLM)
	resolved.Lineage = append(resolved.Lineage, model.LineageEntry{
		Stage:  "reranker",
		Action: "fuse_context_judgment",
		Before: prior,
		After:  updated,
	})
	return resolved, nil
}

func rubricScore(rubric string) (float64, bool) {
	switch rubric {
	case "clearly_correct":
		return RubricClearlyCorrect, true
	case "likely_correct":
		return RubricLikelyCorrect, true
	case "uncertain":
		return RubricUncertain, true
	case "likely_wrong":
		return RubricLikelyWrong, true
	default:
		return 0, false
	}
}
