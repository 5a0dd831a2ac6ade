// Package stages implements the Phase 2 and Phase 3 stages that are
// neither pure lexical matching (internal/matching) nor pure
// reconciliation arithmetic (internal/reconcile): the Concept
// Proposer, Document-Type Classifier, Individual/Property Linker and
// Metadata Synthesizer.
package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/foliolab/enrich/internal/llm"
)

// DocumentType closes the set of document categories the classifier
// may return, covering common litigation and transactional filings.
type DocumentType string

const (
	DocTypeMotion         DocumentType = "motion"
	DocTypeOrder          DocumentType = "order"
	DocTypeRuling         DocumentType = "ruling"
	DocTypeJudgment       DocumentType = "judgment"
	DocTypePleadingBrief  DocumentType = "brief"
	DocTypeComplaint      DocumentType = "complaint"
	DocTypeAnswer         DocumentType = "answer"
	DocTypeContract       DocumentType = "contract"
	DocTypeStatute        DocumentType = "statute"
	DocTypeRegulation     DocumentType = "regulation"
	DocTypeCorrespondence DocumentType = "correspondence"
	DocTypeTranscript     DocumentType = "transcript"
	DocTypeOther          DocumentType = "other"
	DocTypeUnknown        DocumentType = "unknown"
)

func allDocumentTypes() []DocumentType {
	return []DocumentType{
		DocTypeMotion, DocTypeOrder, DocTypeRuling, DocTypeJudgment,
		DocTypePleadingBrief, DocTypeComplaint, DocTypeAnswer,
		DocTypeContract, DocTypeStatute, DocTypeRegulation,
		DocTypeCorrespondence, DocTypeTranscript, DocTypeOther, DocTypeUnknown,
	}
}

// Category groups document types into their broad procedural
// families.
func (dt DocumentType) Category() string {
	switch dt {
	case DocTypeMotion:
		return "motion"
	case DocTypeOrder, DocTypeRuling, DocTypeJudgment:
		return "order"
	case DocTypePleadingBrief, DocTypeComplaint, DocTypeAnswer:
		return "pleading"
	case DocTypeContract, DocTypeStatute, DocTypeRegulation:
		return "instrument"
	default:
		return "administrative"
	}
}

func parseDocumentType(s string) DocumentType {
	dt := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range allDocumentTypes() {
		if dt == valid {
			return dt
		}
	}
	return DocTypeUnknown
}

const docTypeSystemPrompt = `You classify legal documents into exactly one category. Respond with JSON: {"document_type": "<one of the allowed values>", "confidence": <0-1 float>}.`

var docTypeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"document_type": map[string]interface{}{"type": "string"},
		"confidence":    map[string]interface{}{"type": "number"},
	},
	"required": []string{"document_type", "confidence"},
}

// DocTypeClassifier is the Document-Type Classifier stage.
type DocTypeClassifier struct {
	chain *llm.Chain
}

func NewDocTypeClassifier(chain *llm.Chain) *DocTypeClassifier {
	return &DocTypeClassifier{chain: chain}
}

// DocTypeResult is the classifier's output: the chosen type and its confidence.
type DocTypeResult struct {
	Type       DocumentType
	Confidence float64
}

func (c *DocTypeClassifier) Run(ctx context.Context, documentText string) (*DocTypeResult, error) {
	excerpt := documentText
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	allowed := make([]string, 0, len(allDocumentTypes()))
	for _, t := range allDocumentTypes() {
		allowed = append(allowed, string(t))
	}

	var parsed struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
	}
	if _, err := c.chain.CompleteJSON(ctx, "doctype_classifier", llm.Request{
		Task:         "doc_type",
		SystemPrompt: docTypeSystemPrompt,
		UserPrompt:   fmt.Sprintf("Allowed values: %s\n\nDocument excerpt:\n%s", strings.Join(allowed, ", "), excerpt),
		Schema:       docTypeSchema,
		MaxTokens:    128,
	}, &parsed); err != nil {
		return nil, err
	}

	return &DocTypeResult{Type: parseDocumentType(parsed.DocumentType), Confidence: parsed.Confidence}, nil
}
