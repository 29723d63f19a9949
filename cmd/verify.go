package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/passlog"
	"github.com/altgovph/procurement-cli/internal/registry"
	"github.com/altgovph/procurement-cli/internal/source"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Attach SEC registration evidence to registry records",
	Long: `Parses saved SEC company search pages and attaches the registration
number, date, status and address of each matched company to its registry
record. Matching uses the strict verification threshold. Source flags are
never changed by this pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "verify"))

		if err := cfg.Validate("verify"); err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("sec-dir")
		if dir == "" {
			dir = cfg.Sources.SEC.Dir
		}

		entries, err := source.LoadSECDir(dir)
		if err != nil {
			return eris.Wrap(err, "verify: load SEC pages")
		}
		log.Info("loaded SEC entries", zap.String("dir", dir), zap.Int("entries", len(entries)))

		pool, err := registryPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		syncer, err := newSyncer(cfg, registry.NewPostgresStore(pool))
		if err != nil {
			return eris.Wrap(err, "verify: build syncer")
		}

		if err := runVerify(ctx, os.Stdout, syncer, passlog.New(pool), entries); err != nil {
			return err
		}

		fmt.Println("Verification complete")
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("sec-dir", "", "directory of saved SEC search pages (default: sources.sec.dir)")
	rootCmd.AddCommand(verifyCmd)
}

// runVerify runs one verification pass under the pass log.
func runVerify(ctx context.Context, out io.Writer, syncer *registry.Syncer, tr tracker, entries []registry.Verification) error {
	var report *registry.VerifyReport
	err := tr.Track(ctx, "verify", func(ctx context.Context) (map[string]int, error) {
		r, err := syncer.SyncVerification(ctx, entries)
		if err != nil {
			return nil, err
		}
		report = r
		return r.Counts(), nil
	})
	if report == nil {
		return eris.Wrap(err, "verify")
	}
	if err != nil {
		zap.L().Warn("pass log not updated", zap.String("command", "verify"), zap.Error(err))
	}

	printCounts(out, "Verified", report.Counts())
	printFailures(out, report.Failures)
	return nil
}
