package reconcile

import "github.com/foliolab/enrich/internal/model"

// contextWindow bounds the character fallback used when no sentence
// index is available for the document.
const contextWindow = 300

// highlight wraps the span's own text in [[ ]] inside the window
// [start, end) of documentText.
func highlight(documentText string, span model.Span, start, end int) string {
	return documentText[start:span.Start] + "[[" + span.Text(documentText) + "]]" + documentText[span.End:end]
}

// sentenceContext builds the LM context for a span: the sentence
// containing it plus radius sentences on either side, with the span
// highlighted. Without a sentence index covering the span it degrades
// to a fixed character window.
func sentenceContext(documentText string, sentences []model.Span, span model.Span, radius int) string {
	idx := -1
	for i, s := range sentences {
		if span.Start >= s.Start && span.Start < s.End {
			idx = i
			break
		}
	}
	if idx < 0 {
		start := span.Start - contextWindow
		if start < 0 {
			start = 0
		}
		end := span.End + contextWindow
		if end > len(documentText) {
			end = len(documentText)
		}
		return highlight(documentText, span, start, end)
	}

	lo := idx - radius
	if lo < 0 {
		lo = 0
	}
	hi := idx + radius
	if hi >= len(sentences) {
		hi = len(sentences) - 1
	}
	start := sentences[lo].Start
	end := sentences[hi].End
	if span.End > end {
		end = span.End
	}
	return highlight(documentText, span, start, end)
}
