package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/passlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent passes",
	Long:  "Displays the most recent sync, verify and link passes from the pass log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		pool, err := registryPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := passlog.New(pool).ListRecent(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no passes found, run 'sync' to populate the registry")
			return nil
		}

		formatStatusEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "number of passes to show")
	rootCmd.AddCommand(statusCmd)
}

// formatStatusEntries writes a tabular representation of pass entries to w.
func formatStatusEntries(out io.Writer, entries []passlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPASS\tSTATUS\tSTARTED\tDURATION\tCOUNTS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.Duration().Round(time.Second).String()
		}

		errMsg := ""
		if e.Error != "" {
			errMsg = truncate(e.Error, 60)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID.String()[:8],
			e.Pass,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			formatCounts(e.Counts),
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatCounts renders the non-zero counts as key=value pairs, keys sorted.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "-"
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return truncate(strings.Join(parts, " "), 80)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
