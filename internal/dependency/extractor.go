// Package dependency implements the Dependency Relation Extractor:
// the stage that proposes subject-predicate-object Triples linking
// confirmed ConceptMatches and Individuals. When an LM is configured
// it judges relations against the already confirmed entities for
// higher precision; without one it falls back to a verb-anchored
// heuristic parse so the stage keeps running when every LM-backed
// stage is offline.
package dependency

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

const systemPrompt = `You extract subject-predicate-object relations between the already-identified entities in a document excerpt. Only use the given entity ids as subject/object. Respond with JSON: {"triples": [{"subject_id": "...", "predicate": "...", "object_id": "...", "confidence": <0-1 float>}]}.`

var schema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"triples": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"subject_id": map[string]interface{}{"type": "string"},
					"predicate":  map[string]interface{}{"type": "string"},
					"object_id":  map[string]interface{}{"type": "string"},
					"confidence": map[string]interface{}{"type": "number"},
				},
				"required": []string{"subject_id", "predicate", "object_id", "confidence"},
			},
		},
	},
	"required": []string{"triples"},
}

// Entity is one candidate subject/object the extractor may relate,
// identified by its stable annotation id.
type Entity struct {
	ID   string
	Name string
	Span model.Span
}

// PropertyRef names one resolved object property. A predicate whose
// text or lemma matches the property's label resolves to the property
// IRI instead of staying a bare verb lemma.
type PropertyRef struct {
	IRI   string
	Label string
}

// propertyLabelIndex maps normalized property labels (and their
// lemmas) to IRIs for predicate resolution.
func propertyLabelIndex(properties []PropertyRef) map[string]string {
	if len(properties) == 0 {
		return nil
	}
	byLabel := make(map[string]string, len(properties)*2)
	for _, p := range properties {
		label := strings.ToLower(strings.TrimSpace(p.Label))
		if label == "" {
			continue
		}
		if _, ok := byLabel[label]; !ok {
			byLabel[label] = p.IRI
		}
		lemma := lemmatize(label)
		if _, ok := byLabel[lemma]; !ok {
			byLabel[lemma] = p.IRI
		}
	}
	return byLabel
}

// resolvePredicate maps a predicate to a known property IRI when a
// resolved property carries that label; otherwise the verb lemma
// stands.
func resolvePredicate(predicate string, byLabel map[string]string) string {
	lemma := lemmatize(strings.TrimSpace(predicate))
	if iri, ok := byLabel[strings.ToLower(strings.TrimSpace(predicate))]; ok {
		return iri
	}
	if iri, ok := byLabel[lemma]; ok {
		return iri
	}
	return lemma
}

// HeuristicConfidence is the fixed confidence assigned to triples
// produced by the no-LM verb-anchored fallback parse, below anything
// an LM judgment would plausibly emit.
const HeuristicConfidence = 0.45

// verbPattern matches common legal-document predicate verbs (and their
// inflections) used to anchor a heuristic subject-predicate-object
// parse when no LM is available.
var verbPattern = regexp.MustCompile(`(?i)\b(file(?:d|s|ing)?|grant(?:ed|s|ing)?|den(?:y|ies|ied|ying)|order(?:ed|s|ing)?|rul(?:e|ed|es|ing)|enter(?:ed|s|ing)?|appoint(?:ed|s|ing)?|represent(?:ed|s|ing)?|sue(?:d|s)?|su(?:ing)|charg(?:e|ed|es|ing)|convict(?:ed|s|ing)?|sentenc(?:e|ed|es|ing)|dismiss(?:ed|es|ing)?|affirm(?:ed|s|ing)?|revers(?:e|ed|es|ing)|remand(?:ed|s|ing)?|hold|held|holds|holding|find|found|finds|finding|appeal(?:ed|s|ing)?|testif(?:y|ies|ied|ying)|object(?:ed|s|ing)?)\b`)

// sentenceSplit naively splits text on sentence-ending punctuation; it
// need not be exact, only good enough to bound the window a heuristic
// SPO parse searches within.
var sentenceSplit = regexp.MustCompile(`[^.!?]+[.!?]*`)

type Extractor struct {
	chain *llm.Chain
}

func NewExtractor(chain *llm.Chain) *Extractor {
	return &Extractor{chain: chain}
}

// Run returns the extracted triples and whether an LM call was
// actually used to produce them, so callers can account for LM usage
// accurately — the heuristic fallback runs without one, per "No LM
// required".
func (e *Extractor) Run(ctx context.Context, chunkText string, entities []Entity, properties []PropertyRef) ([]model.Triple, bool, error) {
	if len(entities) < 2 {
		return nil, false, nil
	}
	byLabel := propertyLabelIndex(properties)

	if e.chain != nil && e.chain.Name() != llm.NoProviderName {
		triples, err := e.runLM(ctx, chunkText, entities, byLabel)
		if err == nil {
			return triples, true, nil
		}
	}

	return e.runHeuristic(chunkText, entities, byLabel), false, nil
}

func (e *Extractor) runLM(ctx context.Context, chunkText string, entities []Entity, byLabel map[string]string) ([]model.Triple, error) {
	validIDs := make(map[string]bool, len(entities))
	list := ""
	for _, ent := range entities {
		validIDs[ent.ID] = true
		list += fmt.Sprintf("- %s: %s\n", ent.ID, ent.Name)
	}

	var parsed struct {
		Triples []struct {
			SubjectID  string  `json:"subject_id"`
			Predicate  string  `json:"predicate"`
			ObjectID   string  `json:"object_id"`
			Confidence float64 `json:"confidence"`
		} `json:"triples"`
	}
	if _, err := e.chain.CompleteJSON(ctx, "dependency_extractor", llm.Request{
		Task:         "dependency_extractor",
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Entities:\n%s\nExcerpt:\n%s", list, chunkText),
		Schema:       schema,
		MaxTokens:    512,
	}, &parsed); err != nil {
		return nil, err
	}

	out := make([]model.Triple, 0, len(parsed.Triples))
	for _, t := range parsed.Triples {
		if !validIDs[t.SubjectID] || !validIDs[t.ObjectID] {
			continue
		}
		out = append(out, model.Triple{
			SubjectID:  t.SubjectID,
			Predicate:  resolvePredicate(t.Predicate, byLabel),
			ObjectID:   t.ObjectID,
			Confidence: t.Confidence,
		})
	}
	return out, nil
}

// runHeuristic emits one triple per sentence that contains a verbal
// predicate and mentions two or more of the candidate entities by
// name, linking the earliest-mentioned entity to the latest as
// subject and object of the matched verb's lemma (or the property IRI
// the lemma resolves to).
func (e *Extractor) runHeuristic(chunkText string, entities []Entity, byLabel map[string]string) []model.Triple {
	var out []model.Triple
	for _, sentence := range sentenceSplit.FindAllString(chunkText, -1) {
		verb := verbPattern.FindString(sentence)
		if verb == "" {
			continue
		}

		type mention struct {
			id  string
			pos int
		}
		var mentions []mention
		lowerSentence := strings.ToLower(sentence)
		for _, ent := range entities {
			if ent.Name == "" {
				continue
			}
			pos := strings.Index(lowerSentence, strings.ToLower(ent.Name))
			if pos == -1 {
				continue
			}
			mentions = append(mentions, mention{id: ent.ID, pos: pos})
		}
		if len(mentions) < 2 {
			continue
		}
		sort.Slice(mentions, func(i, j int) bool { return mentions[i].pos < mentions[j].pos })

		subject := mentions[0]
		object := mentions[len(mentions)-1]
		if subject.id == object.id {
			continue
		}
		out = append(out, model.Triple{
			SubjectID:  subject.id,
			Predicate:  resolvePredicate(verb, byLabel),
			ObjectID:   object.id,
			Confidence: HeuristicConfidence,
		})
	}
	return out
}

// lemmatize strips common inflectional suffixes so predicates like
// "filed"/"filing" collapse to the same base form "fil"; a stem's
// dropped trailing "e" is not restored.
func lemmatize(verb string) string {
	lower := strings.ToLower(verb)
	switch {
	case strings.HasSuffix(lower, "ied"):
		return lower[:len(lower)-3] + "y"
	case strings.HasSuffix(lower, "ing"):
		return strings.TrimSuffix(lower, "ing")
	case strings.HasSuffix(lower, "ed"):
		return strings.TrimSuffix(lower, "ed")
	case strings.HasSuffix(lower, "es"):
		return strings.TrimSuffix(lower, "es")
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return strings.TrimSuffix(lower, "s")
	default:
		return lower
	}
}
