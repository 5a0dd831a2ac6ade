// Package normalize implements Phase 1 ingestion: pulling raw document
// bytes from a source, normalizing them to NFKC text, and splitting
// the result into overlapping chunks bounded for single LM calls.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/foliolab/enrich/internal/model"
)

// Text applies NFKC normalization and collapses runs of whitespace
// to a single space, done once up front so every downstream span
// indexes into the same canonical text.
func Text(raw string) string {
	normalized := norm.NFKC.String(raw)
	var b strings.Builder
	b.Grow(len(normalized))
	lastWasSpace := false
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Chunk splits text into overlapping windows of at most maxSize
// characters with overlap characters shared between consecutive
// windows, so a span straddling a chunk boundary is still fully
// visible to at least one chunk.
func Chunk(text string, maxSize, overlap int) []model.Chunk {
	if maxSize <= 0 {
		maxSize = 3000
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}
	if len(text) <= maxSize {
		return []model.Chunk{{Index: 0, Span: model.Span{Start: 0, End: len(text)}, Text: text}}
	}

	var chunks []model.Chunk
	start := 0
	idx := 0
	for start < len(text) {
		end := start + maxSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, model.Chunk{
			Index: idx,
			Span:  model.Span{Start: start, End: end},
			Text:  text[start:end],
		})
		idx++
		if end == len(text) {
			break
		}
		start = end - overlap
	}
	return chunks
}
