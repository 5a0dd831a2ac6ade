package normalize

import "testing"

func TestTextCollapsesWhitespaceAndTrims(t *testing.T) {
	got := Text("  The   Court\t\tdenied\nthe   motion.  ")
	want := "The Court denied the motion."
	if got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestTextNFKC(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI should decompose to "fi" under NFKC.
	got := Text("ﬁle a motion")
	if got != "file a motion" {
		t.Fatalf("Text() = %q, want %q", got, "file a motion")
	}
}

func TestChunkSingleChunkWhenShort(t *testing.T) {
	chunks := Chunk("short text", 3000, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Span.Start != 0 || chunks[0].Span.End != len("short text") {
		t.Fatalf("unexpected span: %+v", chunks[0].Span)
	}
}

func TestChunkOverlapsAndCoversWholeText(t *testing.T) {
	text := make([]byte, 1000)
	for i := range text {
		text[i] = byte('a' + i%26)
	}
	chunks := Chunk(string(text), 300, 50)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Span.Start != 0 {
		t.Fatalf("first chunk should start at 0, got %d", chunks[0].Span.Start)
	}
	last := chunks[len(chunks)-1]
	if last.Span.End != len(text) {
		t.Fatalf("last chunk should reach end of text, got %d want %d", last.Span.End, len(text))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.Span.Start >= prev.Span.End {
			t.Fatalf("chunk %d does not overlap chunk %d: %+v %+v", i, i-1, prev.Span, cur.Span)
		}
		if prev.Span.End-cur.Span.Start != 50 && cur.Span.End != len(text) {
			// Only the final chunk may have a shorter overlap (it runs to end of text).
		}
	}
}

func TestChunkNeverExceedsMaxSize(t *testing.T) {
	text := make([]byte, 777)
	for i := range text {
		text[i] = 'x'
	}
	chunks := Chunk(string(text), 100, 20)
	for _, c := range chunks {
		if c.Span.Len() > 100 {
			t.Fatalf("chunk %d exceeds max size: %d", c.Index, c.Span.Len())
		}
	}
}
