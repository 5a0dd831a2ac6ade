package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/model"
)

// AreaOfLaw closes the set of practice areas the post-pipeline
// classifier may assign, aligned with the FOLIO taxonomy's top-level
// branches.
type AreaOfLaw string

const (
	AreaOfLawCriminal             AreaOfLaw = "criminal"
	AreaOfLawCivilProcedure       AreaOfLaw = "civil_procedure"
	AreaOfLawContract             AreaOfLaw = "contract"
	AreaOfLawCorporate            AreaOfLaw = "corporate"
	AreaOfLawFamily               AreaOfLaw = "family"
	AreaOfLawIntellectualProperty AreaOfLaw = "intellectual_property"
	AreaOfLawRealProperty         AreaOfLaw = "real_property"
	AreaOfLawTax                  AreaOfLaw = "tax"
	AreaOfLawLabor                AreaOfLaw = "labor_employment"
	AreaOfLawImmigration          AreaOfLaw = "immigration"
	AreaOfLawEnvironmental        AreaOfLaw = "environmental"
	AreaOfLawConstitutional       AreaOfLaw = "constitutional"
	AreaOfLawAdministrative       AreaOfLaw = "administrative"
	AreaOfLawBankruptcy           AreaOfLaw = "bankruptcy"
	AreaOfLawOther                AreaOfLaw = "other"
	AreaOfLawUnknown              AreaOfLaw = "unknown"
)

func allAreasOfLaw() []AreaOfLaw {
	return []AreaOfLaw{
		AreaOfLawCriminal, AreaOfLawCivilProcedure, AreaOfLawContract, AreaOfLawCorporate,
		AreaOfLawFamily, AreaOfLawIntellectualProperty, AreaOfLawRealProperty, AreaOfLawTax,
		AreaOfLawLabor, AreaOfLawImmigration, AreaOfLawEnvironmental, AreaOfLawConstitutional,
		AreaOfLawAdministrative, AreaOfLawBankruptcy, AreaOfLawOther, AreaOfLawUnknown,
	}
}

func parseAreaOfLaw(s string) AreaOfLaw {
	a := AreaOfLaw(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range allAreasOfLaw() {
		if a == valid {
			return a
		}
	}
	return AreaOfLawUnknown
}

// branchAreaKeywords maps a lowercased FOLIO branch-name fragment to
// the area of law it most plausibly indicates, used by the no-LM
// heuristic fallback. Order matters: the first match wins, so more
// specific fragments are listed before generic ones.
var branchAreaKeywords = []struct {
	fragment string
	area     AreaOfLaw
}{
	{"criminal", AreaOfLawCriminal},
	{"contract", AreaOfLawContract},
	{"corporate", AreaOfLawCorporate},
	{"family", AreaOfLawFamily},
	{"intellectual property", AreaOfLawIntellectualProperty},
	{"patent", AreaOfLawIntellectualProperty},
	{"trademark", AreaOfLawIntellectualProperty},
	{"property", AreaOfLawRealProperty},
	{"tax", AreaOfLawTax},
	{"labor", AreaOfLawLabor},
	{"employment", AreaOfLawLabor},
	{"immigration", AreaOfLawImmigration},
	{"environment", AreaOfLawEnvironmental},
	{"constitution", AreaOfLawConstitutional},
	{"administrative", AreaOfLawAdministrative},
	{"bankruptcy", AreaOfLawBankruptcy},
	{"procedure", AreaOfLawCivilProcedure},
}

const areaOfLawSystemPrompt = `You classify a legal document into exactly one practice area given its dominant FOLIO ontology branches and document-type hypothesis. Respond with JSON: {"area_of_law": "<one of the allowed values>", "confidence": <0-1 float>}.`

var areaOfLawSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"area_of_law": map[string]interface{}{"type": "string"},
		"confidence":  map[string]interface{}{"type": "number"},
	},
	"required": []string{"area_of_law", "confidence"},
}

// AreaOfLawResult is the post-pipeline classifier's output.
type AreaOfLawResult struct {
	Area       AreaOfLaw
	Confidence float64
}

// AreaOfLawClassifier is the post-pipeline Area-of-Law classification
// step named in the dependency order: it runs once, after Phase 3,
// over the dominant branches of the job's resolved concept matches
// rather than raw document text, since by that point the pipeline
// already knows which ontology branches the document is actually
// about. With no LM configured it degrades to a keyword heuristic
// over those same branch names instead of skipping outright; the
// branch frequencies are already computed by then, so a best-effort
// area tag costs nothing extra.
type AreaOfLawClassifier struct {
	chain *llm.Chain
}

func NewAreaOfLawClassifier(chain *llm.Chain) *AreaOfLawClassifier {
	return &AreaOfLawClassifier{chain: chain}
}

// Run classifies the area of law from the dominant branches of
// matches and the document-type hypothesis. It reports whether the LM
// was used so the caller can count it toward lm_call_count, and
// whether the stage degraded to the heuristic fallback.
func (c *AreaOfLawClassifier) Run(ctx context.Context, docType *DocTypeResult, matches []model.ConceptMatch) (*AreaOfLawResult, bool, bool) {
	branches := dominantBranches(matches, 5)

	if c.chain == nil || c.chain.Name() == llm.NoProviderName {
		return c.heuristic(branches), false, true
	}

	allowed := make([]string, 0, len(allAreasOfLaw()))
	for _, a := range allAreasOfLaw() {
		allowed = append(allowed, string(a))
	}

	docTypeName := string(DocTypeUnknown)
	if docType != nil {
		docTypeName = string(docType.Type)
	}

	var parsed struct {
		AreaOfLaw  string  `json:"area_of_law"`
		Confidence float64 `json:"confidence"`
	}
	if _, err := c.chain.CompleteJSON(ctx, "area_of_law_classifier", llm.Request{
		Task:         "area_of_law",
		SystemPrompt: areaOfLawSystemPrompt,
		UserPrompt: fmt.Sprintf(
			"Allowed values: %s\n\nDocument type hypothesis: %s\nDominant ontology branches: %s",
			strings.Join(allowed, ", "), docTypeName, strings.Join(branches, ", "),
		),
		Schema:    areaOfLawSchema,
		MaxTokens: 128,
	}, &parsed); err != nil {
		return c.heuristic(branches), false, true
	}

	return &AreaOfLawResult{Area: parseAreaOfLaw(parsed.AreaOfLaw), Confidence: parsed.Confidence}, true, false
}

func (c *AreaOfLawClassifier) heuristic(branches []string) *AreaOfLawResult {
	for _, branch := range branches {
		lower := strings.ToLower(branch)
		for _, kw := range branchAreaKeywords {
			if strings.Contains(lower, kw.fragment) {
				return &AreaOfLawResult{Area: kw.area, Confidence: 0.4}
			}
		}
	}
	if len(branches) == 0 {
		return &AreaOfLawResult{Area: AreaOfLawUnknown, Confidence: 0}
	}
	return &AreaOfLawResult{Area: AreaOfLawOther, Confidence: 0.2}
}

// dominantBranches returns up to n branch names ranked by how many
// resolved concept matches claim them, most frequent first.
func dominantBranches(matches []model.ConceptMatch, n int) []string {
	counts := make(map[string]int)
	for _, m := range matches {
		for _, b := range m.Branches {
			counts[b]++
		}
	}
	type kv struct {
		branch string
		count  int
	}
	kvs := make([]kv, 0, len(counts))
	for b, c := range counts {
		kvs = append(kvs, kv{b, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].branch < kvs[j].branch
	})
	out := make([]string, 0, n)
	for _, e := range kvs {
		out = append(out, e.branch)
		if len(out) >= n {
			break
		}
	}
	return out
}

// DocTypeQualityCrossCheck is the post-pipeline sanity check named
// alongside Area-of-Law classification: it flags a job whose
// Document-Type hypothesis disagrees with what the resolved concept
// matches actually turned out to be about, e.g. a document classified
// as a "contract" whose dominant branch is overwhelmingly "Event"
// (court proceedings) rather than "Document" (instruments). It never
// changes DocType itself, only records a quality_signal, since the
// spec leaves correction to a human reviewer via the user-action API.
func DocTypeQualityCrossCheck(docType *DocTypeResult, matches []model.ConceptMatch) *model.QualitySignal {
	if docType == nil || len(matches) == 0 {
		return nil
	}
	expected := expectedBranchForDocType(docType.Type)
	if expected == "" {
		return nil
	}
	dominant := dominantBranches(matches, 1)
	if len(dominant) == 0 {
		return nil
	}
	if strings.EqualFold(dominant[0], expected) {
		return nil
	}
	return &model.QualitySignal{
		Kind: model.QualitySignalConflictUnresolved,
		Detail: fmt.Sprintf(
			"document_type %q expects dominant branch %q but resolved concepts are dominated by %q",
			docType.Type, expected, dominant[0],
		),
	}
}

// expectedBranchForDocType maps a document type to the ontology branch
// its content should be dominated by, when the instrument is exactly
// what it claims to be.
func expectedBranchForDocType(dt DocumentType) string {
	switch dt {
	case DocTypeContract, DocTypeStatute, DocTypeRegulation:
		return "Document"
	case DocTypeOrder, DocTypeRuling, DocTypeJudgment, DocTypeMotion, DocTypePleadingBrief, DocTypeComplaint, DocTypeAnswer:
		return "Event"
	default:
		return ""
	}
}
