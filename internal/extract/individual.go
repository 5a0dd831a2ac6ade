// Package extract implements the Individual Extractor: a set of
// rule-based submodules that recognize citations, dates, amounts, and
// other named facts in document text without a language model, so the
// pipeline keeps producing individuals even when the LM collaborator
// is degraded or absent.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foliolab/enrich/internal/model"
)

// submodule is one rule-based recognizer. It receives the full chunk
// text and returns individuals with chunk-local spans; Extractor.Run
// translates them to document-global offsets.
type submodule struct {
	typ     model.IndividualType
	pattern *regexp.Regexp
	// normalize, when set, derives NormalizedForm (and optionally
	// ResolvedURL) from the raw match. Returning ok=false drops the
	// candidate (used to reject numeric false positives).
	normalize func(raw string) (normalized string, resolvedURL string, ok bool)
	confidence float64
}

// Extractor runs every submodule over a chunk and deduplicates the
// combined output. It holds no collaborator state: every submodule is
// a compiled regexp or word list built once at construction.
type Extractor struct {
	submodules []submodule
	courts     *regexp.Regexp
	gpes       *regexp.Regexp
	orgSuffix  *regexp.Regexp
	personTtl  *regexp.Regexp
}

// NewExtractor builds the fixed set of rule-based submodules. The
// extractor takes no language-model chain: it must keep producing
// individuals when every LM-backed stage is offline, and nothing it
// does benefits from one.
func NewExtractor() *Extractor {
	e := &Extractor{}
	e.submodules = []submodule{
		{
			typ:     model.IndividualCitation,
			pattern: regexp.MustCompile(`\b\d{1,4}\s+(?:U\.S\.|F\.\s?\d?d|F\.\s?Supp\.\s?\d?d?|S\.\s?Ct\.|Cal\.\s?\d?(?:th|d)|Cal\.\s?App\.\s?\d?(?:th|d))\s+\d+\b(?:\s*\([A-Za-z.\s]*\d{4}\))?`),
			confidence: 0.92,
			normalize: func(raw string) (string, string, bool) {
				norm := collapseSpace(raw)
				slug := strings.ToLower(strings.NewReplacer(" ", "-", ".", "", "(", "", ")", "").Replace(norm))
				return norm, fmt.Sprintf("https://www.courtlistener.com/?q=%s", slug), true
			},
		},
		{
			typ:     model.IndividualStatute,
			pattern: regexp.MustCompile(`\b\d+\s+U\.S\.C\.\s*§+\s*\d+[a-zA-Z0-9.-]*\b|\bCal\.\s+[A-Za-z.&' ]+?Code\s*,?\s*§+\s*\d+[a-zA-Z0-9.-]*\b`),
			confidence: 0.88,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
		{
			typ:     model.IndividualCaseNumber,
			pattern: regexp.MustCompile(`\b(?:Case\s+No\.?|No\.?|Docket\s+No\.?)\s*[:]?\s*\d{1,4}[-:][A-Za-z]{0,4}[-:]?\d{2,8}(?:-[A-Za-z]{1,4})?\b`),
			confidence: 0.8,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
		{
			typ:     model.IndividualDate,
			pattern: regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s*\d{4}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`),
			confidence: 0.85,
			normalize: normalizeDate,
		},
		{
			typ:     model.IndividualMoney,
			pattern: regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?(?:\s*(?:million|billion|thousand))?`),
			confidence: 0.85,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
		{
			typ:     model.IndividualPercent,
			pattern: regexp.MustCompile(`\b\d{1,3}(?:\.\d+)?\s?%`),
			confidence: 0.85,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
		{
			typ:     model.IndividualDuration,
			pattern: regexp.MustCompile(`\b\d+\s+(?:day|days|month|months|year|years|week|weeks)\b`),
			confidence: 0.75,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
		{
			typ:     model.IndividualPhone,
			pattern: regexp.MustCompile(`\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
			confidence: 0.8,
			normalize: func(raw string) (string, string, bool) {
				digits := strings.Map(func(r rune) rune {
					if r >= '0' && r <= '9' {
						return r
					}
					return -1
				}, raw)
				if len(digits) != 10 {
					return "", "", false
				}
				return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10]), "", true
			},
		},
		{
			typ:     model.IndividualEmail,
			pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			confidence: 0.95,
			normalize: func(raw string) (string, string, bool) {
				return strings.ToLower(raw), "mailto:" + strings.ToLower(raw), true
			},
		},
		{
			typ:     model.IndividualURL,
			pattern: regexp.MustCompile(`\bhttps?://[^\s)>"']+`),
			confidence: 0.95,
			normalize: func(raw string) (string, string, bool) {
				trimmed := strings.TrimRight(raw, ".,;:)")
				return trimmed, trimmed, true
			},
		},
		{
			typ:     model.IndividualAddress,
			pattern: regexp.MustCompile(`\b\d{1,6}\s+[A-Z][A-Za-z0-9.'\s]{2,40}\s+(?:Street|St\.|Avenue|Ave\.|Boulevard|Blvd\.|Road|Rd\.|Drive|Dr\.|Lane|Ln\.|Suite|Ste\.)\b[A-Za-z0-9.,\s#]*`),
			confidence: 0.65,
			normalize: func(raw string) (string, string, bool) {
				return collapseSpace(raw), "", true
			},
		},
	}
	// titleWords bounds a run of capitalized words so these patterns
	// can't greedily swallow the rest of a lowercase sentence.
	const titleWords = `[A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,4}`
	e.courts = regexp.MustCompile(`\b(?:United States Supreme Court|U\.S\. Supreme Court|Supreme Court of ` + titleWords + `|Superior Court of ` + titleWords + `|Court of Appeal[s]?(?:(?: for)? the ` + titleWords + `)?|United States District Court(?: for the ` + titleWords + `)?|U\.S\. District Court(?: for the ` + titleWords + `)?|Ninth Circuit Court of Appeals|Circuit Court of Appeals)\b`)
	e.gpes = regexp.MustCompile(`\b(?:City of|County of|State of)\s+` + titleWords + `\b|\b(?:Alabama|Alaska|Arizona|Arkansas|California|Colorado|Connecticut|Delaware|Florida|Georgia|Hawaii|Idaho|Illinois|Indiana|Iowa|Kansas|Kentucky|Louisiana|Maine|Maryland|Massachusetts|Michigan|Minnesota|Mississippi|Missouri|Montana|Nebraska|Nevada|New Hampshire|New Jersey|New Mexico|New York|North Carolina|North Dakota|Ohio|Oklahoma|Oregon|Pennsylvania|Rhode Island|South Carolina|South Dakota|Tennessee|Texas|Utah|Vermont|Virginia|Washington|West Virginia|Wisconsin|Wyoming)\b`)
	e.orgSuffix = regexp.MustCompile(`\b` + titleWords + `\s+(?:Inc\.|LLC|L\.L\.C\.|Corp\.|Corporation|Co\.|Ltd\.|LLP|L\.P\.|Company|Association|Partners)\b`)
	e.personTtl = regexp.MustCompile(`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.|Judge|Justice|Hon\.|Officer|Detective|Plaintiff|Defendant)\s+[A-Z][a-z]+(?:\s[A-Z][a-z]+){0,2}\b`)
	return e
}

// Run applies every submodule to chunk.Text, translates chunk-local
// spans to document-global offsets using chunk.Span.Start, and
// deduplicates the combined result: group by type, normalized surface
// text, and span; the highest-confidence individual in a group
// survives and absorbs the rest's sources.
func (e *Extractor) Run(ctx context.Context, chunk model.Chunk) ([]model.Individual, error) {
	var out []model.Individual

	for _, sub := range e.submodules {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, loc := range sub.pattern.FindAllStringIndex(chunk.Text, -1) {
			raw := chunk.Text[loc[0]:loc[1]]
			norm, url, ok := sub.normalize(raw)
			if !ok {
				continue
			}
			out = append(out, model.Individual{
				ID:   uuid.NewString(),
				Type: sub.typ,
				Name: raw,
				Span: model.Span{
					Start: chunk.Span.Start + loc[0],
					End:   chunk.Span.Start + loc[1],
				},
				NormalizedForm: norm,
				ResolvedURL:    url,
				Confidence:     sub.confidence,
				Sources:        []model.SourceKindTag{model.SourceRuler},
			})
		}
	}

	out = append(out, e.matchNamed(chunk, e.courts, model.IndividualCourt, 0.85)...)
	out = append(out, e.matchNamed(chunk, e.gpes, model.IndividualGPE, 0.7)...)
	out = append(out, e.matchNamed(chunk, e.orgSuffix, model.IndividualOrg, 0.75)...)
	out = append(out, e.matchNamed(chunk, e.personTtl, model.IndividualPerson, 0.7)...)

	return dedupeIndividuals(out), nil
}

func (e *Extractor) matchNamed(chunk model.Chunk, pattern *regexp.Regexp, typ model.IndividualType, confidence float64) []model.Individual {
	var out []model.Individual
	for _, loc := range pattern.FindAllStringIndex(chunk.Text, -1) {
		raw := chunk.Text[loc[0]:loc[1]]
		out = append(out, model.Individual{
			ID:             uuid.NewString(),
			Type:           typ,
			Name:           raw,
			Span:           model.Span{Start: chunk.Span.Start + loc[0], End: chunk.Span.Start + loc[1]},
			NormalizedForm: collapseSpace(raw),
			Confidence:     confidence,
			Sources:        []model.SourceKindTag{model.SourceRuler},
		})
	}
	return out
}

// dedupeIndividuals groups by (type, normalized surface, span) and
// keeps the highest-confidence individual per group, folding the
// others' sources into the survivor.
func dedupeIndividuals(in []model.Individual) []model.Individual {
	type key struct {
		typ  model.IndividualType
		norm string
		span model.Span
	}
	groups := make(map[key]*model.Individual)
	order := make([]key, 0, len(in))
	for _, ind := range in {
		ind := ind
		k := key{typ: ind.Type, norm: strings.ToLower(ind.NormalizedForm), span: ind.Span}
		existing, ok := groups[k]
		if !ok {
			groups[k] = &ind
			order = append(order, k)
			continue
		}
		if ind.Confidence > existing.Confidence {
			ind.Sources = mergeSourceTags(existing.Sources, ind.Sources)
			groups[k] = &ind
		} else {
			existing.Sources = mergeSourceTags(existing.Sources, ind.Sources)
		}
	}
	out := make([]model.Individual, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

func mergeSourceTags(a, b []model.SourceKindTag) []model.SourceKindTag {
	seen := make(map[model.SourceKindTag]bool, len(a)+len(b))
	out := make([]model.SourceKindTag, 0, len(a)+len(b))
	for _, s := range append(append([]model.SourceKindTag{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// normalizeDate converts the three date surface forms recognized by
// the date submodule's pattern into ISO-8601 (YYYY-MM-DD).
func normalizeDate(raw string) (string, string, bool) {
	raw = strings.TrimSpace(raw)

	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02"), "", true
	}

	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) == 3 {
			month, err1 := strconv.Atoi(parts[0])
			day, err2 := strconv.Atoi(parts[1])
			year, err3 := strconv.Atoi(parts[2])
			if err1 == nil && err2 == nil && err3 == nil {
				if year < 100 {
					year += 2000
				}
				if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
					return fmt.Sprintf("%04d-%02d-%02d", year, month, day), "", true
				}
			}
		}
		return "", "", false
	}

	fields := strings.Fields(strings.ReplaceAll(raw, ",", ""))
	if len(fields) == 3 {
		m, ok := monthNames[strings.ToLower(fields[0])]
		day, errDay := strconv.Atoi(fields[1])
		year, errYear := strconv.Atoi(fields[2])
		if ok && errDay == nil && errYear == nil {
			return fmt.Sprintf("%04d-%02d-%02d", year, int(m), day), "", true
		}
	}
	return "", "", false
}
