package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

// lowConfidenceThreshold below which a concept match counts toward the
// quality signal for low-confidence density.
const lowConfidenceThreshold = 0.5

// roleWindow is how far on either side of an individual's span the
// role-keyword scan (LM path unavailable) looks for party-role cues.
const roleWindow = 60

const metadataSystemPrompt = `You synthesize a structured metadata record for a legal document from its extracted concepts, individuals, properties and relations. Respond with JSON: {"case_number": "...", "case_name": "...", "judge_name": "...", "attorneys": ["..."], "charges": ["..."], "authorities": ["..."], "party_roles": {"<name>": "plaintiff|defendant|petitioner|respondent|appellant|appellee|attorney|judge|other"}, "jurisdiction": "...", "court_level": "trial|appellate|supreme", "case_category": "..."}. Omit any field you cannot determine rather than guessing.`

var metadataSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"case_number":   map[string]interface{}{"type": "string"},
		"case_name":     map[string]interface{}{"type": "string"},
		"judge_name":    map[string]interface{}{"type": "string"},
		"attorneys":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"charges":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"authorities":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"party_roles":   map[string]interface{}{"type": "object"},
		"jurisdiction":  map[string]interface{}{"type": "string"},
		"court_level":   map[string]interface{}{"type": "string"},
		"case_category": map[string]interface{}{"type": "string"},
	},
}

// partyRoleKeywords anchors the no-LM party-role heuristic: the
// nearest of these terms found around an individual's mention decides
// its role; when two terms are equally near, the earlier entry wins.
var partyRoleKeywords = []struct {
	keyword string
	role    string
}{
	{"plaintiff", "plaintiff"},
	{"defendant", "defendant"},
	{"petitioner", "petitioner"},
	{"respondent", "respondent"},
	{"appellant", "appellant"},
	{"appellee", "appellee"},
	{"counsel", "attorney"},
	{"attorney", "attorney"},
	{"judge", "judge"},
}

// MetadataSynthesizer is the final Phase 3 stage: it folds every
// upstream stage's output into one Metadata record and attaches
// quality signals describing how much to trust it. With an LM
// configured it makes a single call over the full pipeline context;
// without one (or on LM failure) it falls back to a minimal record
// derived from the individuals the deterministic extractors already
// found.
type MetadataSynthesizer struct {
	chain *llm.Chain
}

func NewMetadataSynthesizer(chain *llm.Chain) *MetadataSynthesizer {
	return &MetadataSynthesizer{chain: chain}
}

// SynthesisInput collects everything the synthesizer needs; it is
// assembled by the orchestrator at the end of Phase 3.
type SynthesisInput struct {
	Document         *model.Document
	DocType          *DocTypeResult
	ConceptMatches   []model.ConceptMatch
	Individuals      []model.Individual
	PropertyCount    int
	Triples          []model.Triple
	DegradedStages   []string
	LMCallCount      int
	LMProviderUsed   string
	EmbeddingIndexUsed bool
	OntologyVersion  string
	Phase1Duration   time.Duration
	Phase2Duration   time.Duration
	Phase3Duration   time.Duration
}

// Run returns the synthesized Metadata, whether the stage itself
// degraded to its minimal no-LM path, and how many LM calls it made
// (0 or 1).
func (s *MetadataSynthesizer) Run(ctx context.Context, in SynthesisInput) (*model.Metadata, bool, int) {
	md := &model.Metadata{
		ConceptCount:       len(in.ConceptMatches),
		IndividualCount:    len(in.Individuals),
		PropertyCount:      in.PropertyCount,
		TripleCount:        len(in.Triples),
		LMCallCount:        in.LMCallCount,
		LMProviderUsed:     in.LMProviderUsed,
		EmbeddingIndexUsed: in.EmbeddingIndexUsed,
		OntologyVersion:    in.OntologyVersion,
		ProcessingDurationMS: (in.Phase1Duration + in.Phase2Duration + in.Phase3Duration).Milliseconds(),
		Phase1DurationMS:   in.Phase1Duration.Milliseconds(),
		Phase2DurationMS:   in.Phase2Duration.Milliseconds(),
		Phase3DurationMS:   in.Phase3Duration.Milliseconds(),
		SynthesizedAt:      time.Now(),
	}

	if in.Document != nil {
		md.SourceURI = in.Document.URI
		md.DocumentLength = len(in.Document.Text)
		md.ChunkCount = len(in.Document.Chunks)
	}

	if in.DocType != nil {
		md.DocumentType = string(in.DocType.Type)
		md.DocumentTypeConf = in.DocType.Confidence
		md.CaseCategory = in.DocType.Type.Category()
	} else {
		md.DocumentType = string(DocTypeUnknown)
	}

	md.PrimaryConcepts = topConceptIDs(in.ConceptMatches, 10)
	md.PrimaryIndividuals = topIndividualNames(in.Individuals, 10)

	degradedStages := in.DegradedStages
	lmCalls := 0
	selfDegraded := false

	documentText := ""
	if in.Document != nil {
		documentText = in.Document.Text
	}

	if s.chain != nil && s.chain.Name() != llm.NoProviderName {
		if err := s.synthesizeWithLM(ctx, md, in); err == nil {
			lmCalls = 1
		} else {
			selfDegraded = true
			s.applyMinimalRecord(md, in.Individuals, documentText)
		}
	} else {
		selfDegraded = true
		s.applyMinimalRecord(md, in.Individuals, documentText)
	}

	if selfDegraded {
		degradedStages = append(degradedStages, "metadata_synthesizer")
	}
	md.DegradedStages = degradedStages

	sum, min, low := confidenceStats(in.ConceptMatches)
	md.MinConfidence = min
	md.LowConfidenceCount = low
	if len(in.ConceptMatches) > 0 {
		md.AverageConfidence = sum / float64(len(in.ConceptMatches))
	}

	if low > 0 {
		md.QualitySignals = append(md.QualitySignals, model.QualitySignal{
			Kind:   model.QualitySignalLowConfidenceDensity,
			Detail: "concept matches below confidence threshold",
		})
	}
	if len(in.ConceptMatches) == 0 && len(in.Individuals) == 0 {
		md.QualitySignals = append(md.QualitySignals, model.QualitySignal{
			Kind: model.QualitySignalSparseExtraction,
		})
	}
	for _, stage := range degradedStages {
		md.QualitySignals = append(md.QualitySignals, model.QualitySignal{
			Kind:   model.QualitySignalDegradedCollaborator,
			Detail: stage,
		})
	}

	return md, selfDegraded, lmCalls
}

// synthesizeWithLM fills in the legal-metadata fields an LM can infer
// from context that the deterministic individuals alone cannot:
// party roles, the judge, counsel of record, charges and cited
// authorities.
func (s *MetadataSynthesizer) synthesizeWithLM(ctx context.Context, md *model.Metadata, in SynthesisInput) error {
	var parsed struct {
		CaseNumber   string            `json:"case_number"`
		CaseName     string            `json:"case_name"`
		JudgeName    string            `json:"judge_name"`
		Attorneys    []string          `json:"attorneys"`
		Charges      []string          `json:"charges"`
		Authorities  []string          `json:"authorities"`
		PartyRoles   map[string]string `json:"party_roles"`
		Jurisdiction string            `json:"jurisdiction"`
		CourtLevel   string            `json:"court_level"`
		CaseCategory string            `json:"case_category"`
	}
	if _, err := s.chain.CompleteJSON(ctx, "metadata_synthesizer", llm.Request{
		Task:         "metadata_synthesizer",
		SystemPrompt: metadataSystemPrompt,
		UserPrompt:   synthesisPrompt(in),
		Schema:       metadataSchema,
		MaxTokens:    768,
	}, &parsed); err != nil {
		return err
	}

	md.CaseNumber = parsed.CaseNumber
	md.JudgeName = parsed.JudgeName
	md.Attorneys = parsed.Attorneys
	md.Charges = parsed.Charges
	md.Authorities = parsed.Authorities
	md.PartyRoles = parsed.PartyRoles
	if parsed.Jurisdiction != "" {
		md.Jurisdiction = parsed.Jurisdiction
	}
	if parsed.CourtLevel != "" {
		md.CourtLevel = parsed.CourtLevel
	}
	if parsed.CaseCategory != "" {
		md.CaseCategory = parsed.CaseCategory
	}
	return nil
}

// synthesisPrompt renders the full pipeline context: concept
// annotations, individuals grouped by type, properties, triples and
// the document-type hypothesis.
func synthesisPrompt(in SynthesisInput) string {
	var b strings.Builder
	if in.DocType != nil {
		fmt.Fprintf(&b, "Document type hypothesis: %s (confidence %.2f)\n\n", in.DocType.Type, in.DocType.Confidence)
	} else {
		b.WriteString("Document type hypothesis: unknown\n\n")
	}

	b.WriteString("Concept annotations:\n")
	for _, m := range in.ConceptMatches {
		fmt.Fprintf(&b, "- %s: %q\n", m.PreferredLabel, m.SurfaceText)
	}

	b.WriteString("\nIndividuals by type:\n")
	byType := make(map[model.IndividualType][]string)
	for _, ind := range in.Individuals {
		byType[ind.Type] = append(byType[ind.Type], ind.NormalizedForm)
	}
	for t, names := range byType {
		fmt.Fprintf(&b, "- %s: %s\n", t, strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "\nProperty annotation count: %d\n", in.PropertyCount)

	b.WriteString("\nTriples:\n")
	for _, t := range in.Triples {
		fmt.Fprintf(&b, "- %s %s %s\n", t.SubjectID, t.Predicate, t.ObjectID)
	}

	return b.String()
}

// applyMinimalRecord derives parties/court/jurisdiction/case fields
// from the individuals the deterministic extractors already found,
// the no-LM fallback path. Party roles are assigned from role
// keywords found near each individual's mention in the document text
// rather than a placeholder, when the text is available.
func (s *MetadataSynthesizer) applyMinimalRecord(md *model.Metadata, individuals []model.Individual, documentText string) {
	md.PartyRoles = partiesFromIndividuals(individuals, documentText)
	md.CourtLevel = courtFromIndividuals(individuals)
	md.Jurisdiction = jurisdictionFromIndividuals(individuals)
	md.CaseNumber = caseNumberFromIndividuals(individuals)
	md.Charges = normalizedFormsByType(individuals, model.IndividualStatute, 10)
	md.Authorities = normalizedFormsByType(individuals, model.IndividualCitation, 10)

	for name, role := range md.PartyRoles {
		switch role {
		case "judge":
			if md.JudgeName == "" {
				md.JudgeName = name
			}
		case "attorney":
			md.Attorneys = append(md.Attorneys, name)
		}
	}
}

func topConceptIDs(matches []model.ConceptMatch, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if seen[m.ConceptID] {
			continue
		}
		seen[m.ConceptID] = true
		out = append(out, m.ConceptID)
		if len(out) >= n {
			break
		}
	}
	return out
}

func topIndividualNames(individuals []model.Individual, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ind := range individuals {
		if seen[ind.Name] {
			continue
		}
		seen[ind.Name] = true
		out = append(out, ind.Name)
		if len(out) >= n {
			break
		}
	}
	return out
}

// partiesFromIndividuals assigns a role to each person/organization
// individual by scanning the document text immediately around its
// mention for a role keyword (plaintiff/defendant/judge/attorney/...),
// falling back to "party" only when no keyword is found nearby.
func partiesFromIndividuals(individuals []model.Individual, documentText string) map[string]string {
	roles := make(map[string]string)
	for _, ind := range individuals {
		if ind.Type != model.IndividualPerson && ind.Type != model.IndividualOrg {
			continue
		}
		if _, ok := roles[ind.Name]; ok {
			continue
		}
		roles[ind.Name] = roleNear(ind.Span, documentText)
		if len(roles) >= 10 {
			break
		}
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}

// roleNear scans the text window around span for the nearest
// recognized party-role keyword.
func roleNear(span model.Span, documentText string) string {
	if documentText == "" {
		return "party"
	}
	start := span.Start - roleWindow
	if start < 0 {
		start = 0
	}
	end := span.End + roleWindow
	if end > len(documentText) {
		end = len(documentText)
	}
	if start >= end {
		return "party"
	}
	window := strings.ToLower(documentText[start:end])
	spanStart, spanEnd := span.Start-start, span.End-start
	role, bestDist := "party", -1
	for _, rk := range partyRoleKeywords {
		for from := 0; ; {
			i := strings.Index(window[from:], rk.keyword)
			if i < 0 {
				break
			}
			kwStart, kwEnd := from+i, from+i+len(rk.keyword)
			if dist := max(spanStart-kwEnd, kwStart-spanEnd, 0); bestDist < 0 || dist < bestDist {
				role, bestDist = rk.role, dist
			}
			from = kwEnd
		}
	}
	return role
}

func caseNumberFromIndividuals(individuals []model.Individual) string {
	for _, ind := range individuals {
		if ind.Type == model.IndividualCaseNumber {
			return ind.NormalizedForm
		}
	}
	return ""
}

func normalizedFormsByType(individuals []model.Individual, typ model.IndividualType, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ind := range individuals {
		if ind.Type != typ || seen[ind.NormalizedForm] {
			continue
		}
		seen[ind.NormalizedForm] = true
		out = append(out, ind.NormalizedForm)
		if len(out) >= n {
			break
		}
	}
	return out
}

func courtFromIndividuals(individuals []model.Individual) string {
	for _, ind := range individuals {
		if ind.Type == model.IndividualCourt {
			return ind.NormalizedForm
		}
	}
	return ""
}

func jurisdictionFromIndividuals(individuals []model.Individual) string {
	for _, ind := range individuals {
		if ind.Type == model.IndividualGPE {
			return ind.NormalizedForm
		}
	}
	return ""
}

func confidenceStats(matches []model.ConceptMatch) (sum, min float64, lowCount int) {
	min = 1.0
	for _, m := range matches {
		sum += m.Confidence
		if m.Confidence < min {
			min = m.Confidence
		}
		if m.Confidence < lowConfidenceThreshold {
			lowCount++
		}
	}
	if len(matches) == 0 {
		min = 0
	}
	return sum, min, lowCount
}
