package registry

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/resilience"
)

// VerifyReport summarizes one verification pass.
type VerifyReport struct {
	Entries         int                  `json:"entries"`
	Malformed       int                  `json:"malformed"`
	Matched         int                  `json:"matched"`
	Verified        int                  `json:"verified"`
	AlreadyVerified int                  `json:"already_verified"`
	Superseded      int                  `json:"superseded"`
	Unmatched       int                  `json:"unmatched"`
	Ambiguous       int                  `json:"ambiguous"`
	Failures        []resilience.Failure `json:"failures,omitempty"`
}

// Counts flattens the report for the pass log.
func (r *VerifyReport) Counts() map[string]int {
	return map[string]int{
		"entries":          r.Entries,
		"malformed":        r.Malformed,
		"matched":          r.Matched,
		"verified":         r.Verified,
		"already_verified": r.AlreadyVerified,
		"superseded":       r.Superseded,
		"unmatched":        r.Unmatched,
		"ambiguous":        r.Ambiguous,
		"failures":         len(r.Failures),
	}
}

// SyncVerification fuzzy-matches verification entries against registry
// display names with the strict threshold and attaches the evidence to the
// matched record. Source flags are never touched. A record that already
// carries the same registration number is skipped. An entry only replaces
// stored evidence when it scores higher, both within a pass and across
// passes, so re-running over the same entries writes nothing.
func (s *Syncer) SyncVerification(ctx context.Context, entries []Verification) (*VerifyReport, error) {
	log := s.log.With(zap.String("pass", "verification"))
	report := &VerifyReport{Entries: len(entries)}

	records, err := resilience.DoVal(ctx, s.retryFor("list"), s.store.ListContractors)
	if err != nil {
		return report, eris.Wrap(err, "registry: load snapshot")
	}
	SortByID(records)
	ix := s.verify.Index(DisplayNames(records))

	best := make(map[int64]float64)
	for _, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			report.Malformed++
			log.Warn("skipping verification entry without a name",
				zap.String("registration_number", entry.RegistrationNumber))
			continue
		}

		idx, score, hits := ix.Match(entry.Name)
		if hits > 1 {
			report.Ambiguous++
		}
		if idx < 0 {
			report.Unmatched++
			continue
		}
		report.Matched++
		rec := &records[idx]

		if rec.Verification != nil && entry.RegistrationNumber != "" &&
			rec.Verification.RegistrationNumber == entry.RegistrationNumber {
			best[rec.ID] = max(best[rec.ID], score, rec.Verification.Score)
			report.AlreadyVerified++
			continue
		}
		if prev, ok := best[rec.ID]; ok && prev >= score {
			report.Superseded++
			continue
		}
		if rec.Verification != nil && rec.Verification.Score >= score {
			report.Superseded++
			continue
		}

		v := entry
		v.Score = score
		err := s.write(ctx, "set_verification", func(ctx context.Context) error {
			return s.store.SetVerification(ctx, rec.ID, v)
		})
		if err != nil {
			s.fail(&report.Failures, log, "set_verification", rec.DisplayName, err)
			continue
		}
		rec.Verification = &v
		best[rec.ID] = score
		report.Verified++
	}

	log.Info("verification sync complete",
		zap.Int("entries", report.Entries),
		zap.Int("matched", report.Matched),
		zap.Int("verified", report.Verified),
		zap.Int("already_verified", report.AlreadyVerified),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}
