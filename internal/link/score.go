// Package link matches procurement contracts to infrastructure projects by
// amount, location, and contractor identity.
package link

import (
	"math"
	"strings"

	"github.com/altgovph/procurement-cli/internal/resolve"
)

// Contract is a procurement contract award.
type Contract struct {
	ID           string  `json:"id"`
	Amount       float64 `json:"amount"`
	DeliveryArea string  `json:"delivery_area"`
	Awardee      string  `json:"awardee"`
}

// Project is an infrastructure project record.
type Project struct {
	ID         string  `json:"id"`
	Cost       float64 `json:"cost"`
	Province   string  `json:"province"`
	Region     string  `json:"region"`
	Contractor string  `json:"contractor"`
}

// Weights are the confidence contributions of each component score.
type Weights struct {
	Location   float64 `mapstructure:"location" yaml:"location"`
	Amount     float64 `mapstructure:"amount" yaml:"amount"`
	Contractor float64 `mapstructure:"contractor" yaml:"contractor"`
}

// Config holds the linker's tunables. Zero fields take DefaultConfig values.
type Config struct {
	// AmountTolerance is the relative difference beyond which amounts do not match.
	AmountTolerance float64
	// AmountGate is the amount score below which confidence is forced to zero.
	AmountGate float64
	// ContractorFloor is the contractor similarity below which the score counts as zero.
	ContractorFloor float64
	// RegionScore is the location score for a region-level containment match,
	// and the weight applied to fuzzy region similarity.
	RegionScore float64
	// AcceptAt is the minimum confidence for a link to be kept.
	AcceptAt float64
	Weights  Weights
}

// DefaultConfig returns the standard linker parameters.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.05,
		AmountGate:      0.8,
		ContractorFloor: 0.6,
		RegionScore:     0.7,
		AcceptAt:        70,
		Weights:         Weights{Location: 0.4, Amount: 0.5, Contractor: 0.1},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AmountTolerance <= 0 || c.AmountTolerance >= 1 {
		c.AmountTolerance = d.AmountTolerance
	}
	if c.AmountGate <= 0 {
		c.AmountGate = d.AmountGate
	}
	if c.ContractorFloor <= 0 {
		c.ContractorFloor = d.ContractorFloor
	}
	if c.RegionScore <= 0 {
		c.RegionScore = d.RegionScore
	}
	if c.AcceptAt <= 0 {
		c.AcceptAt = d.AcceptAt
	}
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	return c
}

// Candidate is one scored contract/project pairing.
type Candidate struct {
	ContractID string  `json:"contract_id"`
	ProjectID  string  `json:"project_id"`
	Location   float64 `json:"location_score"`
	Amount     float64 `json:"amount_score"`
	Contractor float64 `json:"contractor_score"`
	Confidence float64 `json:"confidence"`
}

// Scorer computes the component scores and the aggregate confidence.
type Scorer struct {
	cfg    Config
	norm   *resolve.Normalizer
	scorer *resolve.Scorer
}

// NewScorer creates a Scorer. A nil normalizer uses the default vocabulary.
func NewScorer(cfg Config, norm *resolve.Normalizer) *Scorer {
	if norm == nil {
		norm = resolve.NewNormalizer(resolve.DefaultVocabulary())
	}
	return &Scorer{cfg: cfg.withDefaults(), norm: norm, scorer: resolve.NewScorer(norm)}
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// AmountScore returns 1 - |a-b|/max(a,b), or 0 when either amount is not
// positive or the difference exceeds the tolerance.
func (s *Scorer) AmountScore(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	rel := math.Abs(a-b) / math.Max(a, b)
	if rel > s.cfg.AmountTolerance {
		return 0
	}
	return 1 - rel
}

// LocationScore compares a delivery area with a project's province and region.
// Containment of the province scores 1.0 and of the region RegionScore;
// otherwise the better of the province ratio and the region ratio scaled by
// RegionScore. Empty sides never match.
func (s *Scorer) LocationScore(area, province, region string) float64 {
	na := s.norm.NormalizeLocation(area)
	if na == "" {
		return 0
	}
	np := s.norm.NormalizeLocation(province)
	nr := s.norm.NormalizeLocation(region)

	if contains(na, np) {
		return 1
	}
	if contains(na, nr) {
		return s.cfg.RegionScore
	}

	var best float64
	if np != "" {
		best = resolve.Ratio(na, np)
	}
	if nr != "" {
		best = math.Max(best, resolve.Ratio(na, nr)*s.cfg.RegionScore)
	}
	return best
}

// ContractorScore is name similarity with scores under the floor counted as zero.
func (s *Scorer) ContractorScore(awardee, contractor string) float64 {
	sim := s.scorer.Similarity(awardee, contractor)
	if sim < s.cfg.ContractorFloor {
		return 0
	}
	return sim
}

// Score scores one contract/project pairing. Confidence is zero unless the
// amount score clears the gate, and is rounded to two decimals.
func (s *Scorer) Score(c Contract, p Project) Candidate {
	cand := Candidate{
		ContractID: c.ID,
		ProjectID:  p.ID,
		Amount:     s.AmountScore(c.Amount, p.Cost),
		Location:   s.LocationScore(c.DeliveryArea, p.Province, p.Region),
		Contractor: s.ContractorScore(c.Awardee, p.Contractor),
	}
	if cand.Amount < s.cfg.AmountGate {
		return cand
	}
	w := s.cfg.Weights
	cand.Confidence = round2(100 * (cand.Location*w.Location + cand.Amount*w.Amount + cand.Contractor*w.Contractor))
	return cand
}

// Accepted reports whether the candidate clears the acceptance threshold.
func (s *Scorer) Accepted(c Candidate) bool { return c.Confidence >= s.cfg.AcceptAt }

func contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
