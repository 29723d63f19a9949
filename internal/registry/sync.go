package registry

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/resilience"
	"github.com/altgovph/procurement-cli/internal/resolve"
)

// SyncConfig tunes a Syncer. Zero values select the defaults.
type SyncConfig struct {
	Threshold         float64
	VerifyThreshold   float64
	Policy            resolve.MatchPolicy
	MinFragmentLength int
	Retry             resilience.RetryConfig
}

// Syncer runs per-source registry sync passes and the verification pass.
// A Syncer assumes it is the only writer for the duration of a pass.
type Syncer struct {
	store    Store
	splitter *resolve.Splitter
	dedup    *resolve.Deduplicator
	verify   *resolve.Deduplicator
	retry    resilience.RetryConfig
	log      *zap.Logger
}

// NewSyncer creates a Syncer over store using vocab for normalization and
// validity checks.
func NewSyncer(store Store, vocab resolve.Vocabulary, cfg SyncConfig) *Syncer {
	verifyThreshold := cfg.VerifyThreshold
	if verifyThreshold <= 0 {
		verifyThreshold = resolve.StrictThreshold
	}
	scorer := resolve.NewScorer(resolve.NewNormalizer(vocab))
	return &Syncer{
		store:    store,
		splitter: resolve.NewSplitter(vocab, cfg.MinFragmentLength),
		dedup:    resolve.NewDeduplicator(scorer, cfg.Threshold, cfg.Policy),
		verify:   resolve.NewDeduplicator(scorer, verifyThreshold, cfg.Policy),
		retry:    cfg.Retry,
		log:      zap.L().With(zap.String("component", "registry.sync")),
	}
}

// SyncReport summarizes one source sync pass.
type SyncReport struct {
	Source             Source               `json:"source"`
	Raw                int                  `json:"raw"`
	Malformed          int                  `json:"malformed"`
	JointVentures      int                  `json:"joint_ventures"`
	FormerAnnotated    int                  `json:"former_annotated"`
	Rejected           int                  `json:"rejected"`
	Candidates         int                  `json:"candidates"`
	Created            int                  `json:"created"`
	DuplicatesExisting int                  `json:"duplicates_existing"`
	DuplicatesInBatch  int                  `json:"duplicates_in_batch"`
	FlagsAdded         int                  `json:"flags_added"`
	FormerLinked       int                  `json:"former_linked"`
	FormerConflicts    int                  `json:"former_conflicts"`
	CycleRejected      int                  `json:"cycle_rejected"`
	Ambiguous          int                  `json:"ambiguous"`
	Failures           []resilience.Failure `json:"failures,omitempty"`
}

// Counts flattens the report for the pass log.
func (r *SyncReport) Counts() map[string]int {
	return map[string]int{
		"raw":                 r.Raw,
		"malformed":           r.Malformed,
		"joint_ventures":      r.JointVentures,
		"former_annotated":    r.FormerAnnotated,
		"rejected":            r.Rejected,
		"candidates":          r.Candidates,
		"created":             r.Created,
		"duplicates_existing": r.DuplicatesExisting,
		"duplicates_in_batch": r.DuplicatesInBatch,
		"flags_added":         r.FlagsAdded,
		"former_linked":       r.FormerLinked,
		"former_conflicts":    r.FormerConflicts,
		"cycle_rejected":      r.CycleRejected,
		"ambiguous":           r.Ambiguous,
		"failures":            len(r.Failures),
	}
}

type formerPair struct {
	current, former string
}

// SyncSource splits and deduplicates one source's raw contractor names
// against the registry, creates records for new names, adds the source flag
// to matched records, and links former names. Per-record failures are
// recorded in the report and do not stop the pass; only a failure to read the
// registry snapshot returns an error.
func (s *Syncer) SyncSource(ctx context.Context, src Source, raw []string) (*SyncReport, error) {
	if src.flag() == 0 {
		return nil, eris.Errorf("registry: unknown source %q", src)
	}
	log := s.log.With(zap.String("source", string(src)))
	report := &SyncReport{Source: src, Raw: len(raw)}

	records, err := resilience.DoVal(ctx, s.retryFor("list"), s.store.ListContractors)
	if err != nil {
		return report, eris.Wrap(err, "registry: load snapshot")
	}
	SortByID(records)

	candidates, formers := s.decompose(raw, report, log)

	p := s.dedup.Partition(candidates, DisplayNames(records))
	report.Candidates = len(p.New) + len(p.Duplicates)
	report.Ambiguous = p.Ambiguous
	if p.Ambiguous > 0 {
		log.Info("ambiguous matches resolved by policy",
			zap.Int("count", p.Ambiguous),
			zap.String("policy", string(s.dedup.Policy())),
		)
	}

	resolved := make(map[string]int64, report.Candidates)

	for _, dup := range p.Duplicates {
		if dup.InBatch {
			continue
		}
		report.DuplicatesExisting++
		rec := &records[dup.Index]
		resolved[dup.Name] = rec.ID
		if rec.Sources.Has(src) {
			continue
		}
		err := s.write(ctx, "add_source", func(ctx context.Context) error {
			return s.store.AddSource(ctx, rec.ID, src)
		})
		if err != nil {
			s.fail(&report.Failures, log, "add_source", rec.DisplayName, err)
			continue
		}
		rec.Sources = rec.Sources.With(src)
		report.FlagsAdded++
	}

	retry := s.retryFor("create")
	for _, name := range p.New {
		rec, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*ContractorRecord, error) {
			return s.store.CreateContractor(ctx, name, src)
		})
		if err != nil {
			s.fail(&report.Failures, log, "create", name, err)
			continue
		}
		report.Created++
		resolved[name] = rec.ID
		records = append(records, *rec)
	}

	for _, dup := range p.Duplicates {
		if !dup.InBatch {
			continue
		}
		report.DuplicatesInBatch++
		if id, ok := resolved[p.New[dup.Index]]; ok {
			resolved[dup.Name] = id
		}
	}

	s.linkFormers(ctx, formers, resolved, newForest(records), report, log)

	log.Info("source sync complete",
		zap.Int("raw", report.Raw),
		zap.Int("candidates", report.Candidates),
		zap.Int("created", report.Created),
		zap.Int("duplicates_existing", report.DuplicatesExisting),
		zap.Int("duplicates_in_batch", report.DuplicatesInBatch),
		zap.Int("flags_added", report.FlagsAdded),
		zap.Int("former_linked", report.FormerLinked),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

func (s *Syncer) decompose(raw []string, report *SyncReport, log *zap.Logger) ([]string, []formerPair) {
	var (
		candidates []string
		formers    []formerPair
	)
	for _, name := range raw {
		if strings.TrimSpace(name) == "" {
			report.Malformed++
			log.Warn("skipping empty contractor name")
			continue
		}
		d := s.splitter.Split(name)
		if d.JointVenture {
			report.JointVentures++
		}
		if d.FormerAnnotated {
			report.FormerAnnotated++
		}
		report.Rejected += len(d.Rejected)
		if len(d.Candidates) == 0 {
			log.Debug("no valid candidates", zap.String("raw", name), zap.Int("rejected", len(d.Rejected)))
			continue
		}
		for _, c := range d.Candidates {
			candidates = append(candidates, c.Name)
			for _, f := range c.FormerNames {
				formers = append(formers, formerPair{current: c.Name, former: f})
			}
		}
	}
	return candidates, formers
}

// linkFormers points each current-name record at its former-name record.
// Links that would close a cycle are rejected; an existing different
// predecessor is left as is.
func (s *Syncer) linkFormers(ctx context.Context, pairs []formerPair, resolved map[string]int64, f forest, report *SyncReport, log *zap.Logger) {
	for _, fp := range pairs {
		cid, ok := resolved[fp.current]
		if !ok {
			continue
		}
		fid, ok := resolved[fp.former]
		if !ok || cid == fid {
			continue
		}

		if existing := f.lookup(cid); existing != nil {
			if *existing != fid {
				report.FormerConflicts++
				log.Info("former-name predecessor already set",
					zap.Int64("id", cid), zap.Int64("existing", *existing), zap.Int64("proposed", fid))
			}
			continue
		}

		if err := ValidateFormerLink(cid, fid, f.lookup, len(f)+1); err != nil {
			report.CycleRejected++
			log.Warn("former-name link rejected", zap.String("current", fp.current), zap.String("former", fp.former), zap.Error(err))
			continue
		}

		err := s.write(ctx, "set_former", func(ctx context.Context) error {
			return s.store.SetFormer(ctx, cid, fid)
		})
		if err != nil {
			s.fail(&report.Failures, log, "set_former", fp.current, err)
			continue
		}
		f.set(cid, fid)
		report.FormerLinked++
	}
}

func (s *Syncer) retryFor(op string) resilience.RetryConfig {
	cfg := s.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.LogRetry("registry", op)
	}
	return cfg
}

func (s *Syncer) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return resilience.Do(ctx, s.retryFor(op), fn)
}

func (s *Syncer) fail(failures *[]resilience.Failure, log *zap.Logger, op, key string, err error) {
	f := resilience.NewFailure(op, key, err)
	*failures = append(*failures, f)
	log.Error("registry write failed",
		zap.String("operation", op),
		zap.String("name", key),
		zap.String("class", f.Class),
		zap.Error(err),
	)
}
