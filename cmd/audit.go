package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/altgovph/procurement-cli/internal/registry"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report registry names that need splitting or are invalid",
	Long: `Checks every registry display name with the sync splitter and validity
filter. Records holding an unsplit joint venture, a former-name annotation,
a parenthetical, generic words only or leaked structured data are listed with
their issues. The registry is not modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("audit"); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		pool, err := registryPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		syncer, err := newSyncer(cfg, registry.NewPostgresStore(pool))
		if err != nil {
			return eris.Wrap(err, "audit: build syncer")
		}

		return runAudit(ctx, os.Stdout, syncer, limit)
	},
}

func init() {
	auditCmd.Flags().Int("limit", 30, "number of flagged records to list, 0 for all")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(ctx context.Context, out io.Writer, syncer *registry.Syncer, limit int) error {
	report, err := syncer.Audit(ctx)
	if err != nil {
		return eris.Wrap(err, "audit")
	}

	printCounts(out, "Audited", report.Counts())
	formatAuditFindings(out, report.Flagged, limit)
	return nil
}

// formatAuditFindings lists up to limit flagged records; limit <= 0 lists all.
func formatAuditFindings(out io.Writer, findings []registry.AuditFinding, limit int) {
	if len(findings) == 0 {
		return
	}
	shown := findings
	if limit > 0 && len(findings) > limit {
		shown = findings[:limit]
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCES\tISSUES\tNAME")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----")
	for _, f := range shown {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, f.Sources, strings.Join(f.Issues, ","), truncate(f.DisplayName, 80))
	}
	_ = w.Flush()

	if rest := len(findings) - len(shown); rest > 0 {
		_, _ = fmt.Fprintf(out, "... and %d more\n", rest)
	}
}
