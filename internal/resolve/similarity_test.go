package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_ExactAfterNormalization(t *testing.T) {
	s := NewScorer(nil)

	score, tier := s.Compare("ACME CORP", "Acme Corporation")
	assert.Equal(t, 1.0, score)
	assert.Equal(t, TierExact, tier)
}

func TestScorer_Contains(t *testing.T) {
	s := NewScorer(nil)

	score, tier := s.Compare("ACME", "Acme Supply Corp")
	assert.Equal(t, ContainsScore, score)
	assert.Equal(t, TierContains, tier)
}

func TestScorer_Fuzzy(t *testing.T) {
	s := NewScorer(nil)

	score, tier := s.Compare("BRIGHTSTAR", "BRIGHTSTAT")
	assert.Equal(t, TierFuzzy, tier)
	assert.InDelta(t, 0.9, score, 0.001)
}

func TestScorer_Empty(t *testing.T) {
	s := NewScorer(nil)

	score, tier := s.Compare("", "ACME")
	assert.Equal(t, 0.0, score)
	assert.Equal(t, TierNone, tier)
}

func TestScorer_SelfIsOne(t *testing.T) {
	s := NewScorer(nil)
	for _, name := range []string{"ACME", "Construction Inc", "ABC / XYZ", "Peña Builders"} {
		assert.Equal(t, 1.0, s.Similarity(name, name), name)
	}
}

func TestScorer_Symmetric(t *testing.T) {
	s := NewScorer(nil)
	pairs := [][2]string{
		{"ACME BUILDERS", "ACME BUILDING"},
		{"SUNRISE", "SUNSET"},
		{"ABCD", "BCDA"},
		{"TAGUSAO", "TAGUSAO BROTHERS"},
		{"RDM", "MDR"},
		{"QUEENSLAND", "ISLAND QUEEN"},
	}
	for _, p := range pairs {
		assert.Equal(t, s.Similarity(p[0], p[1]), s.Similarity(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestScorer_Deterministic(t *testing.T) {
	s := NewScorer(nil)
	first := s.Similarity("MEGAWIDE", "MEGA WIDE")
	for range 10 {
		assert.Equal(t, first, s.Similarity("MEGAWIDE", "MEGA WIDE"))
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("ABCD", "ABCD"))
	assert.Equal(t, 0.0, Ratio("ABCD", "WXYZ"))
	assert.Equal(t, 0.0, Ratio("", "WXYZ"))
	assert.InDelta(t, 0.75, Ratio("ABCD", "ABCE"), 0.0001)
	assert.InDelta(t, 0.88, Ratio("ACME SUPPLY X", "ACME SUPPLYS"), 0.0001)
}
