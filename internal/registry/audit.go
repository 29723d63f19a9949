package registry

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/resilience"
)

// Audit issues for records whose display name would not survive a sync
// unchanged. Invalid names are flagged with the resolve rejection reasons.
const (
	IssueJointVenture  = "unsplit_joint_venture"
	IssueFormerName    = "former_annotation"
	IssueParenthetical = "parenthetical"
)

// AuditFinding is one registry record flagged by Audit.
type AuditFinding struct {
	ID          int64       `json:"id"`
	DisplayName string      `json:"display_name"`
	Sources     SourceFlags `json:"source_flags"`
	Issues      []string    `json:"issues"`
}

// AuditReport summarizes a registry audit.
type AuditReport struct {
	Total   int            `json:"total"`
	Clean   int            `json:"clean"`
	Flagged []AuditFinding `json:"flagged,omitempty"`
}

// Counts returns the totals and the number of records carrying each issue.
func (r *AuditReport) Counts() map[string]int {
	counts := map[string]int{
		"total":   r.Total,
		"clean":   r.Clean,
		"flagged": len(r.Flagged),
	}
	for _, f := range r.Flagged {
		for _, issue := range f.Issues {
			counts[issue]++
		}
	}
	return counts
}

// Audit checks every registry display name against the splitter and the
// validity filter and reports the records a sync would have split, rewritten
// or rejected. It never writes.
func (s *Syncer) Audit(ctx context.Context) (*AuditReport, error) {
	log := s.log.With(zap.String("pass", "audit"))

	records, err := resilience.DoVal(ctx, s.retryFor("list"), s.store.ListContractors)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load snapshot")
	}
	SortByID(records)

	report := &AuditReport{Total: len(records)}
	for _, rec := range records {
		issues := s.auditName(rec.DisplayName)
		if len(issues) == 0 {
			report.Clean++
			continue
		}
		report.Flagged = append(report.Flagged, AuditFinding{
			ID:          rec.ID,
			DisplayName: rec.DisplayName,
			Sources:     rec.Sources,
			Issues:      issues,
		})
	}

	log.Info("registry audit complete",
		zap.Int("total", report.Total),
		zap.Int("clean", report.Clean),
		zap.Int("flagged", len(report.Flagged)),
	)
	return report, nil
}

func (s *Syncer) auditName(name string) []string {
	var issues []string
	d := s.splitter.Split(name)
	if d.JointVenture {
		issues = append(issues, IssueJointVenture)
	}
	if d.FormerAnnotated {
		issues = append(issues, IssueFormerName)
	}
	if len(issues) == 0 && len(d.Candidates) == 1 && d.Candidates[0].Name != strings.TrimSpace(name) {
		issues = append(issues, IssueParenthetical)
	}
	if reason := s.splitter.Check(name); reason != "" && !slices.Contains(issues, reason) {
		issues = append(issues, reason)
	}
	return issues
}
