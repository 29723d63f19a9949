package resolve

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Default acceptance thresholds.
const (
	DefaultThreshold = 0.85
	StrictThreshold  = 0.90
)

// MatchPolicy selects which existing name a candidate binds to when more
// than one clears the threshold.
type MatchPolicy string

const (
	// PolicyFirst binds to an existing name with the same normalized key when
	// there is one, even if an earlier name also clears the threshold.
	// Otherwise it binds to the first existing name, in the given order, that
	// clears the threshold.
	PolicyFirst MatchPolicy = "first"
	// PolicyBest binds to the highest-scoring existing name; ties go to the
	// earliest in order.
	PolicyBest MatchPolicy = "best"
)

// ParsePolicy parses a policy name. Empty selects PolicyFirst.
func ParsePolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyBest:
		return PolicyBest, nil
	default:
		return "", eris.Errorf("resolve: unknown match policy %q", s)
	}
}

// Duplicate is a candidate that matched a name already known.
type Duplicate struct {
	Name    string  `json:"name"`
	Matched string  `json:"matched"`
	Score   float64 `json:"score"`
	// Index is the position of Matched in the existing slice, or in
	// Partition.New when InBatch is set.
	Index   int  `json:"index"`
	InBatch bool `json:"in_batch"`
}

// Partition is the result of deduplicating one batch.
type Partition struct {
	Duplicates []Duplicate `json:"duplicates"`
	New        []string    `json:"new"`
	// Ambiguous counts candidates with more than one existing name over the threshold.
	Ambiguous int `json:"ambiguous"`
	Skipped   int `json:"skipped"`
}

// Deduplicator partitions candidate names into duplicates of existing names
// and genuinely new names.
type Deduplicator struct {
	scorer    *Scorer
	threshold float64
	policy    MatchPolicy
}

// NewDeduplicator creates a Deduplicator. A nil scorer uses the default
// vocabulary; threshold <= 0 uses DefaultThreshold.
func NewDeduplicator(scorer *Scorer, threshold float64, policy MatchPolicy) *Deduplicator {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if policy == "" {
		policy = PolicyFirst
	}
	return &Deduplicator{scorer: scorer, threshold: threshold, policy: policy}
}

// Threshold returns the acceptance threshold.
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// Policy returns the match policy.
func (d *Deduplicator) Policy() MatchPolicy { return d.policy }

// Partition classifies candidates against existing. Candidates are
// de-duplicated by exact string and processed in lexicographic order;
// existing names are scanned in the order given. A candidate that matches
// nothing existing is compared against names already accepted as new in this
// batch before being classified new. The result depends only on the inputs.
func (d *Deduplicator) Partition(candidates, existing []string) Partition {
	var p Partition

	ix := d.Index(existing)
	var newKeys []string

	for _, name := range uniqueSorted(candidates) {
		if strings.TrimSpace(name) == "" {
			p.Skipped++
			continue
		}
		key := d.scorer.norm.Normalize(name)

		idx, score, hits := ix.matchKey(key)
		if hits > 1 {
			p.Ambiguous++
		}
		if idx >= 0 {
			p.Duplicates = append(p.Duplicates, Duplicate{
				Name: name, Matched: existing[idx], Score: score, Index: idx,
			})
			continue
		}

		if sib, sibScore := d.firstOver(key, newKeys); sib >= 0 {
			p.Duplicates = append(p.Duplicates, Duplicate{
				Name: name, Matched: p.New[sib], Score: sibScore, Index: sib, InBatch: true,
			})
			continue
		}

		p.New = append(p.New, name)
		newKeys = append(newKeys, key)
	}

	return p
}

// Match finds the existing name that name binds to under the configured policy.
// It returns the index into existing, or -1.
func (d *Deduplicator) Match(name string, existing []string) (int, float64) {
	idx, score, _ := d.Index(existing).Match(name)
	return idx, score
}

// Index holds normalized keys for a fixed list of existing names so repeated
// lookups do not renormalize them.
type Index struct {
	d     *Deduplicator
	keys  []string
	exact map[string]int
}

// Index normalizes existing once for repeated matching.
func (d *Deduplicator) Index(existing []string) *Index {
	ix := &Index{
		d:     d,
		keys:  make([]string, len(existing)),
		exact: make(map[string]int, len(existing)),
	}
	for i, name := range existing {
		ix.keys[i] = d.scorer.norm.Normalize(name)
		if _, ok := ix.exact[ix.keys[i]]; !ok && ix.keys[i] != "" {
			ix.exact[ix.keys[i]] = i
		}
	}
	return ix
}

// Len returns the number of indexed names.
func (ix *Index) Len() int { return len(ix.keys) }

// Match returns the bound index (or -1), its score, and how many indexed
// names cleared the threshold.
func (ix *Index) Match(name string) (int, float64, int) {
	return ix.matchKey(ix.d.scorer.norm.Normalize(name))
}

func (ix *Index) matchKey(key string) (int, float64, int) {
	d := ix.d
	bound, boundScore, hits := -1, 0.0, 0
	if i, ok := ix.exact[key]; ok && d.policy == PolicyFirst {
		bound, boundScore = i, 1
	}

	for i, k := range ix.keys {
		score, _ := CompareNormalized(key, k)
		if score < d.threshold {
			continue
		}
		hits++
		switch {
		case bound < 0:
			bound, boundScore = i, score
		case d.policy == PolicyBest && score > boundScore:
			bound, boundScore = i, score
		}
	}
	return bound, boundScore, hits
}

func (d *Deduplicator) firstOver(key string, keys []string) (int, float64) {
	for i, k := range keys {
		if score, _ := CompareNormalized(key, k); score >= d.threshold {
			return i, score
		}
	}
	return -1, 0
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
