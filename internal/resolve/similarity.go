package resolve

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ContainsScore is the similarity assigned when one normalized name contains the other.
const ContainsScore = 0.9

// Tier identifies which comparison produced a similarity score.
type Tier string

// Similarity tiers, strongest first.
const (
	TierNone     Tier = "none"
	TierExact    Tier = "exact"
	TierContains Tier = "contains"
	TierFuzzy    Tier = "fuzzy"
)

// Scorer computes 0-1 similarity between contractor names.
// It is pure: identical inputs always produce identical scores.
type Scorer struct {
	norm *Normalizer
}

// NewScorer creates a Scorer that normalizes with n.
func NewScorer(n *Normalizer) *Scorer {
	if n == nil {
		n = defaultNormalizer
	}
	return &Scorer{norm: n}
}

// Normalizer returns the normalizer used by the scorer.
func (s *Scorer) Normalizer() *Normalizer { return s.norm }

// Similarity normalizes a and b and returns their similarity in [0,1].
func (s *Scorer) Similarity(a, b string) float64 {
	score, _ := s.Compare(a, b)
	return score
}

// Compare is Similarity that also reports the tier that matched.
func (s *Scorer) Compare(a, b string) (float64, Tier) {
	return CompareNormalized(s.norm.Normalize(a), s.norm.Normalize(b))
}

// CompareNormalized scores two already-normalized keys:
// equal keys score 1.0, containment scores ContainsScore, anything else
// scores the sequence-alignment ratio.
func CompareNormalized(na, nb string) (float64, Tier) {
	if na == "" || nb == "" {
		return 0, TierNone
	}
	if na == nb {
		return 1, TierExact
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return ContainsScore, TierContains
	}
	return Ratio(na, nb), TierFuzzy
}

// Ratio returns the character-level matching-blocks ratio 2*M/T of a and b.
// Arguments are put in a canonical order first, which makes the ratio symmetric.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if b < a {
		a, b = b, a
	}
	m := difflib.NewMatcherWithJunk(splitRunes(a), splitRunes(b), false, nil)
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
