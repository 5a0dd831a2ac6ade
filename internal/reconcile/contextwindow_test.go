package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foliolab/enrich/internal/model"
)

func TestSentenceContextThreeSentenceWindow(t *testing.T) {
	text := "First sentence here. The motion was denied. Third sentence here. Fourth sentence here."
	sentences := []model.Span{
		{Start: 0, End: 20},
		{Start: 21, End: 43},
		{Start: 44, End: 64},
		{Start: 65, End: 87},
	}
	// "motion" inside the second sentence.
	span := model.Span{Start: 25, End: 31}

	got := sentenceContext(text, sentences, span, 1)
	assert.Contains(t, got, "First sentence here.")
	assert.Contains(t, got, "[[motion]]")
	assert.Contains(t, got, "Third sentence here.")
	assert.NotContains(t, got, "Fourth sentence here.")
}

func TestSentenceContextEnclosingSentenceOnly(t *testing.T) {
	text := "First sentence here. The motion was denied. Third sentence here."
	sentences := []model.Span{
		{Start: 0, End: 20},
		{Start: 21, End: 43},
		{Start: 44, End: 64},
	}
	span := model.Span{Start: 25, End: 31}

	got := sentenceContext(text, sentences, span, 0)
	assert.Equal(t, "The [[motion]] was denied.", got)
}

func TestSentenceContextFallsBackToCharacterWindow(t *testing.T) {
	text := "no sentence index available for this text"
	span := model.Span{Start: 3, End: 11}

	got := sentenceContext(text, nil, span, 1)
	assert.Contains(t, got, "[[sentence]]")
	assert.Contains(t, got, "no ")
}

func TestSentenceContextWindowAtDocumentEdges(t *testing.T) {
	text := "Only sentence."
	sentences := []model.Span{{Start: 0, End: 14}}
	span := model.Span{Start: 0, End: 4}

	got := sentenceContext(text, sentences, span, 1)
	assert.Equal(t, "[[Only]] sentence.", got)
}
