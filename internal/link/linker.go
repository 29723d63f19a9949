package link

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/resilience"
	"github.com/altgovph/procurement-cli/internal/resolve"
)

// DefaultChunkSize is the number of links written per batch upsert.
const DefaultChunkSize = 500

// Options configures a Linker beyond its scoring parameters.
type Options struct {
	ChunkSize int
	Retry     resilience.RetryConfig
}

// Linker assigns each contract its best-matching project and keeps the link
// store in step with the result.
type Linker struct {
	store  Store
	scorer *Scorer
	opts   Options
	log    *zap.Logger
}

// NewLinker creates a Linker writing to store.
func NewLinker(store Store, cfg Config, norm *resolve.Normalizer, opts Options) *Linker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Linker{
		store:  store,
		scorer: NewScorer(cfg, norm),
		opts:   opts,
		log:    zap.L().With(zap.String("component", "link")),
	}
}

// Scorer returns the linker's scorer.
func (l *Linker) Scorer() *Scorer { return l.scorer }

// Bands counts linked contracts by confidence.
type Bands struct {
	High   int `json:"high"`   // >= 90
	Medium int `json:"medium"` // 80-89
	Low    int `json:"low"`    // 70-79
}

func (b *Bands) add(confidence float64) {
	switch {
	case confidence >= 90:
		b.High++
	case confidence >= 80:
		b.Medium++
	default:
		b.Low++
	}
}

// LinkReport summarizes one linking pass.
type LinkReport struct {
	Contracts          int                  `json:"contracts"`
	Considered         int                  `json:"considered"`
	Skipped            int                  `json:"skipped"`
	Linked             int                  `json:"linked"`
	Written            int                  `json:"written"`
	Unchanged          int                  `json:"unchanged"`
	Unlinked           int                  `json:"unlinked"`
	Cleared            int                  `json:"cleared"`
	MultipleCandidates int                  `json:"multiple_candidates"`
	Bands              Bands                `json:"bands"`
	Failures           []resilience.Failure `json:"failures,omitempty"`
}

// Counts flattens the report for the pass log.
func (r *LinkReport) Counts() map[string]int {
	return map[string]int{
		"contracts":           r.Contracts,
		"considered":          r.Considered,
		"skipped":             r.Skipped,
		"linked":              r.Linked,
		"written":             r.Written,
		"unchanged":           r.Unchanged,
		"unlinked":            r.Unlinked,
		"cleared":             r.Cleared,
		"multiple_candidates": r.MultipleCandidates,
		"band_high":           r.Bands.High,
		"band_medium":         r.Bands.Medium,
		"band_low":            r.Bands.Low,
		"failures":            len(r.Failures),
	}
}

// Best picks the accepted candidate with the highest confidence for one
// contract, breaking ties by lowest project ID. It also returns how many
// candidates were accepted.
func (l *Linker) Best(c Contract, projects []Project) (Candidate, int, bool) {
	var (
		best     Candidate
		found    bool
		accepted int
	)
	for _, p := range projects {
		cand := l.scorer.Score(c, p)
		if !l.scorer.Accepted(cand) {
			continue
		}
		accepted++
		if !found || cand.Confidence > best.Confidence ||
			(cand.Confidence == best.Confidence && cand.ProjectID < best.ProjectID) {
			best, found = cand, true
		}
	}
	return best, accepted, found
}

// Run links every eligible contract to its best project. Contracts without a
// positive amount or a delivery area are skipped. Links that are already
// stored unchanged are not rewritten, and stored links this pass did not
// reproduce are cleared, so repeated runs over the same inputs converge.
// Per-link write failures are recorded in the report; only a failure to read
// the existing links returns an error.
func (l *Linker) Run(ctx context.Context, contracts []Contract, projects []Project) (*LinkReport, error) {
	report := &LinkReport{Contracts: len(contracts)}

	existing, err := resilience.DoVal(ctx, l.retryFor("list"), l.store.ListLinks)
	if err != nil {
		return report, eris.Wrap(err, "link: load existing links")
	}

	ix := NewProjectIndex(projects)
	tolerance := l.scorer.Config().AmountTolerance

	ordered := make([]Contract, len(contracts))
	copy(ordered, contracts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	produced := make(map[string]bool, len(ordered))
	var pending []Candidate
	for i, c := range ordered {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "link: run")
		}
		if c.ID == "" || c.Amount <= 0 || strings.TrimSpace(c.DeliveryArea) == "" {
			report.Skipped++
			continue
		}
		if i > 0 && ordered[i-1].ID == c.ID {
			report.Skipped++
			l.log.Warn("duplicate contract id", zap.String("contract_id", c.ID))
			continue
		}
		report.Considered++

		best, accepted, ok := l.Best(c, ix.Within(c.Amount, tolerance))
		if accepted > 1 {
			report.MultipleCandidates++
		}
		if !ok {
			report.Unlinked++
			continue
		}
		report.Linked++
		report.Bands.add(best.Confidence)
		produced[c.ID] = true
		if prev, ok := existing[c.ID]; ok && prev == best {
			report.Unchanged++
			continue
		}
		pending = append(pending, best)
	}
	if report.MultipleCandidates > 0 {
		l.log.Info("contracts with several accepted projects",
			zap.Int("count", report.MultipleCandidates))
	}

	l.write(ctx, pending, report)
	l.clear(ctx, existing, produced, report)

	l.log.Info("link pass complete",
		zap.Int("contracts", report.Contracts),
		zap.Int("considered", report.Considered),
		zap.Int("linked", report.Linked),
		zap.Int("written", report.Written),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("cleared", report.Cleared),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// write upserts links in chunks. A failed chunk is retried link by link so
// one bad row does not lose the rest.
func (l *Linker) write(ctx context.Context, links []Candidate, report *LinkReport) {
	for start := 0; start < len(links); start += l.opts.ChunkSize {
		end := min(start+l.opts.ChunkSize, len(links))
		chunk := links[start:end]

		_, err := resilience.DoVal(ctx, l.retryFor("upsert_batch"), func(ctx context.Context) (int64, error) {
			return l.store.UpsertLinks(ctx, chunk)
		})
		if err == nil {
			report.Written += len(chunk)
			continue
		}
		l.log.Warn("batch upsert failed, writing links individually",
			zap.Int("size", len(chunk)), zap.Error(err))

		for _, c := range chunk {
			err := resilience.Do(ctx, l.retryFor("upsert"), func(ctx context.Context) error {
				return l.store.UpsertLink(ctx, c)
			})
			if err != nil {
				l.fail(report, "upsert", c.ContractID, err)
				continue
			}
			report.Written++
		}
	}
}

func (l *Linker) clear(ctx context.Context, existing map[string]Candidate, produced map[string]bool, report *LinkReport) {
	var stale []string
	for id := range existing {
		if !produced[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}
	sort.Strings(stale)

	n, err := resilience.DoVal(ctx, l.retryFor("clear"), func(ctx context.Context) (int64, error) {
		return l.store.ClearLinks(ctx, stale)
	})
	if err != nil {
		l.fail(report, "clear", strings.Join(stale, ","), err)
		return
	}
	report.Cleared = int(n)
}

func (l *Linker) retryFor(op string) resilience.RetryConfig {
	cfg := l.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.LogRetry("link", op)
	}
	return cfg
}

func (l *Linker) fail(report *LinkReport, op, key string, err error) {
	f := resilience.NewFailure(op, key, err)
	report.Failures = append(report.Failures, f)
	l.log.Error("link write failed",
		zap.String("operation", op),
		zap.String("contract_id", key),
		zap.String("class", f.Class),
		zap.Error(err),
	)
}
