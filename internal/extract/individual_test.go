package extract

import (
	"context"
	"testing"

	"github.com/foliolab/enrich/internal/model"
)

func chunkOf(text string) model.Chunk {
	return model.Chunk{Index: 0, Span: model.Span{Start: 0, End: len(text)}, Text: text}
}

func findType(t *testing.T, individuals []model.Individual, typ model.IndividualType) model.Individual {
	t.Helper()
	for _, ind := range individuals {
		if ind.Type == typ {
			return ind
		}
	}
	t.Fatalf("no individual of type %s found in %+v", typ, individuals)
	return model.Individual{}
}

func TestExtractorCitation(t *testing.T) {
	e := NewExtractor()
	inds, err := e.Run(context.Background(), chunkOf("The court relied on 123 F.3d 456 (9th Cir. 1999) in its ruling."))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := findType(t, inds, model.IndividualCitation)
	if got.NormalizedForm == "" {
		t.Fatalf("expected non-empty normalized form")
	}
	if got.ResolvedURL == "" {
		t.Fatalf("expected a resolved url for a citation")
	}
	if got.Span.Start < 0 || got.Span.End > len("The court relied on 123 F.3d 456 (9th Cir. 1999) in its ruling.") {
		t.Fatalf("span out of bounds: %+v", got.Span)
	}
}

func TestExtractorDateNormalization(t *testing.T) {
	e := NewExtractor()
	cases := []struct {
		text string
		want string
	}{
		{"Filed on January 5, 2020 in open court.", "2020-01-05"},
		{"Filed on 01/05/2020 in open court.", "2020-01-05"},
		{"Filed on 2020-01-05 in open court.", "2020-01-05"},
	}
	for _, c := range cases {
		inds, err := e.Run(context.Background(), chunkOf(c.text))
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		got := findType(t, inds, model.IndividualDate)
		if got.NormalizedForm != c.want {
			t.Errorf("text %q: NormalizedForm = %q, want %q", c.text, got.NormalizedForm, c.want)
		}
	}
}

func TestExtractorMoneyPercentDuration(t *testing.T) {
	e := NewExtractor()
	inds, err := e.Run(context.Background(), chunkOf("Damages of $1,250,000.00 were awarded, a 15% increase over 3 years."))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	findType(t, inds, model.IndividualMoney)
	findType(t, inds, model.IndividualPercent)
	findType(t, inds, model.IndividualDuration)
}

func TestExtractorEmailAndURL(t *testing.T) {
	e := NewExtractor()
	inds, err := e.Run(context.Background(), chunkOf("Contact counsel at jane.doe@lawfirm.com or visit https://example.com/docket."))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	email := findType(t, inds, model.IndividualEmail)
	if email.NormalizedForm != "jane.doe@lawfirm.com" {
		t.Errorf("NormalizedForm = %q", email.NormalizedForm)
	}
	url := findType(t, inds, model.IndividualURL)
	if url.NormalizedForm != "https://example.com/docket" {
		t.Errorf("NormalizedForm = %q", url.NormalizedForm)
	}
}

func TestExtractorCourtAndGPE(t *testing.T) {
	e := NewExtractor()
	inds, err := e.Run(context.Background(), chunkOf("The Superior Court of California heard the matter in the City of Oakland."))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	findType(t, inds, model.IndividualCourt)
	findType(t, inds, model.IndividualGPE)
}

func TestExtractorChunkOffsetTranslation(t *testing.T) {
	e := NewExtractor()
	text := "jane.doe@lawfirm.com"
	chunk := model.Chunk{Index: 2, Span: model.Span{Start: 500, End: 500 + len(text)}, Text: text}
	inds, err := e.Run(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := findType(t, inds, model.IndividualEmail)
	if got.Span.Start != 500 || got.Span.End != 500+len(text) {
		t.Fatalf("span not translated to document offsets: %+v", got.Span)
	}
}

func TestExtractorKeepsRepeatedMentionsWithDistinctSpans(t *testing.T) {
	e := NewExtractor()
	// "Motion" matched twice would collapse; use the same phone number
	// appearing twice with identical formatting to force an exact
	// (type, normalized form, span) collision after independent scans
	// is not natural, so instead verify that two distinct phone
	// mentions both survive (they have distinct spans) while the
	// dedup pass doesn't accidentally merge them.
	inds, err := e.Run(context.Background(), chunkOf("Call 555-123-4567 or 555-123-4567 again."))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	count := 0
	for _, ind := range inds {
		if ind.Type == model.IndividualPhone {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct phone individuals (different spans), got %d", count)
	}
}

func TestExtractorNoMatchesIsEmptyNotNilError(t *testing.T) {
	e := NewExtractor()
	inds, err := e.Run(context.Background(), chunkOf("no facts here"))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(inds) != 0 {
		t.Fatalf("expected no individuals, got %d", len(inds))
	}
}

func TestExtractorRespectsCancellation(t *testing.T) {
	e := NewExtractor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, chunkOf("123 F.3d 456 (9th Cir. 1999)"))
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
