package normalize

import (
	"strings"
	"unicode"

	"github.com/foliolab/enrich/internal/model"
)

// Abbreviations that end with a period but do not end a sentence.
// Legal text is dense with these; treating "v." or "F.3d" as a
// terminator would shred citations into fragments.
var nonTerminalAbbrevs = map[string]struct{}{
	"v":     {},
	"vs":    {},
	"no":    {},
	"nos":   {},
	"cir":   {},
	"ct":    {},
	"dist":  {},
	"supp":  {},
	"app":   {},
	"div":   {},
	"dep't": {},
	"inc":   {},
	"corp":  {},
	"co":    {},
	"ltd":   {},
	"llc":   {},
	"llp":   {},
	"mr":    {},
	"mrs":   {},
	"ms":    {},
	"dr":    {},
	"hon":   {},
	"esq":   {},
	"jr":    {},
	"sr":    {},
	"st":    {},
	"sec":   {},
	"stat":  {},
	"et":    {},
	"al":    {},
	"etc":   {},
	"e.g":   {},
	"i.e":   {},
	"u.s":   {},
	"f":     {},
	"cal":   {},
	"fed":   {},
	"supra": {},
}

// Sentences builds the document's sentence index: an ordered list of
// non-overlapping spans over the normalized text, one per sentence.
// Splitting is rule-based on terminal punctuation followed by
// whitespace and an uppercase letter or digit, with a carve-out for
// the abbreviations legal prose leans on.
func Sentences(text string) []model.Span {
	if text == "" {
		return nil
	}

	var spans []model.Span
	start := 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Swallow any run of closing punctuation after the terminator.
		j := i + 1
		for j < len(text) && (text[j] == ')' || text[j] == ']' || text[j] == '"' || text[j] == '\'') {
			j++
		}
		if j >= len(text) {
			break
		}
		if text[j] != ' ' {
			continue
		}
		// The character after the space must look like a sentence
		// opener; a lowercase continuation means the period belonged
		// to an abbreviation or an inline citation.
		k := j + 1
		if k >= len(text) {
			break
		}
		next := rune(text[k])
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) && next != '"' && next != '(' {
			continue
		}
		if c == '.' && isAbbreviation(text[start:i]) {
			continue
		}
		spans = append(spans, model.Span{Start: start, End: j})
		start = k
	}

	if start < len(text) {
		spans = append(spans, model.Span{Start: start, End: len(text)})
	}
	return spans
}

// isAbbreviation reports whether the text leading up to a period ends
// in a token on the non-terminal abbreviation list, or in a single
// letter (an initial, or a reporter volume like "F.").
func isAbbreviation(before string) bool {
	idx := strings.LastIndexFunc(before, func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ','
	})
	token := before[idx+1:]
	token = strings.ToLower(strings.TrimRight(token, "."))
	if token == "" {
		return true
	}
	if len(token) == 1 && token[0] >= 'a' && token[0] <= 'z' {
		return true
	}
	_, ok := nonTerminalAbbrevs[token]
	return ok
}
