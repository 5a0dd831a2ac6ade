package model

import "time"

// Span is a half-open character range [Start, End) over a Document's
// normalized text. End is exclusive, matching Go slice semantics.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of characters covered by the span.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether the other span lies entirely within s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlaps reports whether s and other share any character.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Text returns the substring of text covered by the span, or "" when
// the span is out of bounds for text or inverted.
func (s Span) Text(text string) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return ""
	}
	return text[s.Start:s.End]
}

// SourceKind identifies where a Document's raw bytes came from.
type SourceKind string

const (
	SourceKindInline SourceKind = "inline"
	SourceKindS3     SourceKind = "s3"
	SourceKindLocal  SourceKind = "local"
)

// Chunk is one overlapping slice of a Document's normalized text, as
// produced for stages that must bound the text passed to a language
// model in a single call.
type Chunk struct {
	Index int  `json:"index"`
	Span  Span `json:"span"`
	Text  string `json:"text"`
}

// Document is the normalized unit of work that flows through the
// pipeline. Text holds NFKC-normalized, whitespace-collapsed content;
// OriginalText preserves the bytes as ingested, for offset translation
// back to source material if a caller ever needs it.
type Document struct {
	ID           string    `json:"id"`
	Source       SourceKind `json:"source"`
	URI          string    `json:"uri,omitempty"`
	OriginalText string    `json:"original_text"`
	Text         string    `json:"text"`
	Chunks       []Chunk   `json:"chunks"`
	Sentences    []Span    `json:"sentences,omitempty"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// SentenceAt returns the index into Sentences of the sentence covering
// offset, or -1 when the offset falls outside every sentence.
func (d *Document) SentenceAt(offset int) int {
	for i, s := range d.Sentences {
		if offset >= s.Start && offset < s.End {
			return i
		}
	}
	return -1
}
