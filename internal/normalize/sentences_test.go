package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentencesSplitsOnTerminalPunctuation(t *testing.T) {
	text := "The defendant filed a motion. The court denied it."
	spans := Sentences(text)
	require.Len(t, spans, 2)
	assert.Equal(t, "The defendant filed a motion.", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "The court denied it.", text[spans[1].Start:spans[1].End])
}

func TestSentencesKeepsCaseCitationsIntact(t *testing.T) {
	text := "Smith v. Jones, 123 F.3d 456 (9th Cir. 1999) controls here. The motion is denied."
	spans := Sentences(text)
	require.Len(t, spans, 2)
	assert.Contains(t, text[spans[0].Start:spans[0].End], "9th Cir. 1999")
}

func TestSentencesHandlesAbbreviatedTitles(t *testing.T) {
	text := "Mr. Smith appeared before Hon. Jane Doe. The hearing began at noon."
	spans := Sentences(text)
	require.Len(t, spans, 2)
	assert.Equal(t, "Mr. Smith appeared before Hon. Jane Doe.", text[spans[0].Start:spans[0].End])
}

func TestSentencesSingleSentenceNoTerminator(t *testing.T) {
	text := "an unterminated fragment"
	spans := Sentences(text)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[0].End)
}

func TestSentencesEmptyText(t *testing.T) {
	assert.Empty(t, Sentences(""))
}

func TestSentencesSpansAreOrderedAndNonOverlapping(t *testing.T) {
	text := "First one here. Second one there! Third one everywhere? Fourth."
	spans := Sentences(text)
	require.Len(t, spans, 4)
	for i := 1; i < len(spans); i++ {
		assert.Greater(t, spans[i].Start, spans[i-1].Start)
		assert.GreaterOrEqual(t, spans[i].Start, spans[i-1].End)
	}
}
