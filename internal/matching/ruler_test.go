package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRulerConfidence_Schedule(t *testing.T) {
	cases := []struct {
		name string
		m    Match
		want float64
	}{
		{"multi-word preferred", Match{IsPreferred: true, WordCount: 2}, ConfidenceMultiWordPreferred},
		{"single-word preferred", Match{IsPreferred: true, WordCount: 1}, ConfidenceSingleWordPreferred},
		{"multi-word alt", Match{IsPreferred: false, WordCount: 3}, ConfidenceMultiWordAlt},
		{"single-word alt", Match{IsPreferred: false, WordCount: 1}, ConfidenceSingleWordAlt},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, rulerConfidence(c.m))
		})
	}
}

func TestRulerRun_AssignsConfidenceAndResolvesOverlaps(t *testing.T) {
	r := &Ruler{automaton: Build([]Pattern{
		{Text: "district court", ConceptID: "c1", Label: "District Court", IsPreferred: true},
		{Text: "court", ConceptID: "c2", Label: "Court", IsPreferred: false},
	}, false)}

	matches := r.Run("filed in the district court today")
	var gotC1, gotC2 bool
	for _, m := range matches {
		if m.ConceptID == "c1" {
			gotC1 = true
			assert.Equal(t, ConfidenceMultiWordPreferred, m.Confidence)
		}
		if m.ConceptID == "c2" {
			gotC2 = true
		}
	}
	assert.True(t, gotC1)
	assert.True(t, gotC2, "court is fully contained within district court and should survive as a nested match")
}
