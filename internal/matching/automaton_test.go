package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomatonFindAll_BasicMatch(t *testing.T) {
	a := Build([]Pattern{
		{Text: "motion to dismiss", ConceptID: "c1", Label: "Motion to Dismiss", IsPreferred: true},
	}, false)

	matches := a.FindAll("The defendant filed a Motion to Dismiss yesterday.")
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ConceptID)
	assert.Equal(t, 3, matches[0].WordCount)
}

func TestAutomatonFindAll_WordBoundary(t *testing.T) {
	a := Build([]Pattern{
		{Text: "motion", ConceptID: "c1", Label: "Motion", IsPreferred: true},
	}, false)

	matches := a.FindAll("She felt emotional about the ruling.")
	assert.Empty(t, matches, "substring inside a larger word must not match")
}

func TestAutomatonFindAll_HyphenBoundary(t *testing.T) {
	patterns := []Pattern{
		{Text: "party", ConceptID: "c1", Label: "Party", IsPreferred: true},
	}

	withHyphen := Build(patterns, true)
	assert.Empty(t, withHyphen.FindAll("third-party claim"), "hyphen treated as word char should block the match")

	withoutHyphen := Build(patterns, false)
	matches := withoutHyphen.FindAll("third-party claim")
	assert.NotEmpty(t, matches, "hyphen not a word char should allow the match")
}

func TestAutomatonFindAll_CaseInsensitive(t *testing.T) {
	a := Build([]Pattern{
		{Text: "Plaintiff", ConceptID: "c1", Label: "Plaintiff", IsPreferred: true},
	}, false)

	matches := a.FindAll("the PLAINTIFF moved for summary judgment")
	require.Len(t, matches, 1)
	assert.Equal(t, "Plaintiff", matches[0].Label)
}

func TestAutomatonFindAll_OverlappingPatterns(t *testing.T) {
	a := Build([]Pattern{
		{Text: "district court", ConceptID: "parent", Label: "District Court", IsPreferred: true},
		{Text: "united states district court", ConceptID: "child", Label: "United States District Court", IsPreferred: true},
	}, false)

	matches := a.FindAll("filed in the United States District Court for the Northern District")
	var ids []string
	for _, m := range matches {
		ids = append(ids, m.ConceptID)
	}
	assert.Contains(t, ids, "parent")
	assert.Contains(t, ids, "child")
}

func TestAutomatonFindAll_MultiByteRunes(t *testing.T) {
	a := Build([]Pattern{
		{Text: "café", ConceptID: "c1", Label: "Café", IsPreferred: true},
	}, false)

	matches := a.FindAll("the café was closed")
	require.Len(t, matches, 1)
	assert.Equal(t, "the café was closed"[matches[0].Start:matches[0].End], "café")
}
