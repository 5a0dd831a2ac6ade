package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/foliolab/enrich/internal/embedindex"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/ontology"
)

// Proposer is the Concept Proposer: it covers text the Ruler's exact
// label matching missed, by embedding the document's chunks and
// triaging against the ontology's concept embeddings before ever
// calling an LM. When the top candidate's similarity leads the runner
// up by at least TriageMargin, the candidate is proposed directly
// (provided its own label actually occurs verbatim in the chunk);
// otherwise an LM judges among the leading candidates and must return
// the verbatim span of text it is proposing for. When the embedding
// index has no vectors loaded, every chunk falls straight through to
// the LM path.
type Proposer struct {
	index        embedindex.Index
	embedder     llm.Embedder
	chain        *llm.Chain
	accessor     ontology.Accessor
	triageMargin float64
	topK         int
}

func NewProposer(index embedindex.Index, embedder llm.Embedder, chain *llm.Chain, accessor ontology.Accessor, triageMargin float64) *Proposer {
	return &Proposer{index: index, embedder: embedder, chain: chain, accessor: accessor, triageMargin: triageMargin, topK: 5}
}

const proposerSystemPrompt = `You select the single best-matching ontology concept, if any, for the given text excerpt from a short candidate list. Respond with JSON: {"concept_id": "<id or empty string if none fit>", "concept_text": "<verbatim contiguous text from the excerpt that names the concept>", "confidence": <0-1 float>}. concept_text must be copied verbatim from the excerpt; never paraphrase it.`

func (p *Proposer) Run(ctx context.Context, chunk model.Chunk) ([]model.ConceptMatch, error) {
	if !p.index.Available() || p.embedder == nil {
		return p.runLMOnly(ctx, chunk)
	}

	vector, err := p.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return p.runLMOnly(ctx, chunk)
	}

	neighbors, err := p.index.Nearest(ctx, vector, p.topK)
	if err != nil || len(neighbors) == 0 {
		return p.runLMOnly(ctx, chunk)
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })

	if len(neighbors) == 1 || neighbors[0].Score-neighbors[1].Score >= p.triageMargin {
		concept, err := p.accessor.Concept(ctx, neighbors[0].ConceptID)
		if err == nil {
			if match, ok := p.locateConcept(chunk, concept, neighbors[0].Score, model.MatchTypeSemantic); ok {
				match.AddSource(model.SourceSemantic)
				return []model.ConceptMatch{match}, nil
			}
		}
		// The embedding-favored concept doesn't occur verbatim in this
		// chunk (or failed to resolve) — fall through to the LM, which
		// can locate a paraphrased or partial occurrence itself.
	}

	return p.runLMJudge(ctx, chunk, neighbors)
}

// locateConcept finds the concept's own preferred or alternate label
// verbatim (case-insensitively) within chunk.Text and builds a
// ConceptMatch anchored to that substring's absolute span. Every
// ConceptMatch must carry concept_text that is actually contiguous
// text from the chunk; a candidate with no literal occurrence is
// rejected rather than anchored to the whole chunk span.
func (p *Proposer) locateConcept(chunk model.Chunk, concept *ontology.Concept, confidence float64, matchType model.MatchType) (model.ConceptMatch, bool) {
	labels := append([]string{concept.PrefLabel}, concept.AltLabels...)
	lowerText := strings.ToLower(chunk.Text)
	for _, label := range labels {
		if label == "" {
			continue
		}
		idx := strings.Index(lowerText, strings.ToLower(label))
		if idx < 0 {
			continue
		}
		surface := chunk.Text[idx : idx+len(label)]
		span := model.Span{Start: chunk.Span.Start + idx, End: chunk.Span.Start + idx + len(label)}
		return model.ConceptMatch{
			ConceptID:      concept.ID,
			Label:          concept.PrefLabel,
			PreferredLabel: concept.PrefLabel,
			SurfaceText:    surface,
			Span:           span,
			Confidence:     confidence,
			MatchType:      matchType,
			State:          model.StatePreliminary,
		}, true
	}
	return model.ConceptMatch{}, false
}

func (p *Proposer) runLMOnly(ctx context.Context, chunk model.Chunk) ([]model.ConceptMatch, error) {
	return p.runLMJudge(ctx, chunk, nil)
}

func (p *Proposer) runLMJudge(ctx context.Context, chunk model.Chunk, candidates []embedindex.Neighbor) ([]model.ConceptMatch, error) {
	prompt := fmt.Sprintf("Excerpt:\n%s\n\n", chunk.Text)
	if len(candidates) > 0 {
		prompt += "Candidate concept ids (closest first): "
		for i, c := range candidates {
			if i > 0 {
				prompt += ", "
			}
			prompt += c.ConceptID
		}
	} else {
		prompt += "No embedding candidates are available; judge from general knowledge of legal ontology concepts."
	}

	var parsed struct {
		ConceptID   string  `json:"concept_id"`
		ConceptText string  `json:"concept_text"`
		Confidence  float64 `json:"confidence"`
	}
	if _, err := p.chain.CompleteJSON(ctx, "concept_proposer", llm.Request{
		Task:         "concept_proposer",
		SystemPrompt: proposerSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    128,
	}, &parsed); err != nil {
		return nil, err
	}
	if parsed.ConceptID == "" || parsed.ConceptText == "" {
		return nil, nil
	}

	idx := strings.Index(chunk.Text, parsed.ConceptText)
	if idx < 0 {
		// concept_text is not a substring of the chunk: discard per the
		// verbatim-span invariant rather than anchoring to the chunk.
		return nil, nil
	}

	concept, err := p.accessor.Concept(ctx, parsed.ConceptID)
	if err != nil {
		return nil, nil
	}

	span := model.Span{Start: chunk.Span.Start + idx, End: chunk.Span.Start + idx + len(parsed.ConceptText)}
	match := model.ConceptMatch{
		ConceptID:      concept.ID,
		Label:          concept.PrefLabel,
		PreferredLabel: concept.PrefLabel,
		SurfaceText:    parsed.ConceptText,
		Span:           span,
		Confidence:     clampConfidence(parsed.Confidence),
		MatchType:      model.MatchTypeLLM,
		State:          model.StatePreliminary,
	}
	match.AddSource(model.SourceLLM)
	return []model.ConceptMatch{match}, nil
}

// clampConfidence bounds an LM's self-reported confidence to
// [0.1, 0.99]; self-reports outside that range aren't credible.
func clampConfidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}
