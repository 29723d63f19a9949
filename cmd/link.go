package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/altgovph/procurement-cli/internal/db"
	"github.com/altgovph/procurement-cli/internal/link"
	"github.com/altgovph/procurement-cli/internal/passlog"
	"github.com/altgovph/procurement-cli/internal/source"
)

type contractLoader interface {
	Contracts(ctx context.Context) ([]link.Contract, error)
}

type projectLoader interface {
	Projects(ctx context.Context) ([]link.Project, error)
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link PhilGEPS contracts to flood-control projects",
	Long: `Scores every active PhilGEPS contract against flood-control projects whose
cost lies within the amount tolerance, and stores the best link per contract
when its confidence reaches the acceptance threshold.

Links are recomputed wholesale: stored links a run does not reproduce are
cleared, and unchanged links are left as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "link"))

		if err := cfg.Validate("link"); err != nil {
			return err
		}

		fc, err := source.NewFloodClient(floodOptions(cfg))
		if err != nil {
			return eris.Wrap(err, "link: flood client")
		}

		pgPool, err := db.Connect(ctx, "philgeps", cfg.Sources.PhilGEPS.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()

		pool, err := registryPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		linker, err := newLinker(cfg, link.NewPostgresStore(pool))
		if err != nil {
			return eris.Wrap(err, "link: build linker")
		}

		contracts, projects, err := loadLinkInputs(ctx, source.NewPhilGEPSReader(pgPool), fc)
		if err != nil {
			return err
		}
		log.Info("loaded link inputs",
			zap.Int("contracts", len(contracts)),
			zap.Int("projects", len(projects)),
		)

		if err := runLink(ctx, os.Stdout, linker, passlog.New(pool), contracts, projects); err != nil {
			return err
		}

		fmt.Println("Linking complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

// loadLinkInputs reads contracts and projects concurrently.
func loadLinkInputs(ctx context.Context, cl contractLoader, pl projectLoader) ([]link.Contract, []link.Project, error) {
	var (
		contracts []link.Contract
		projects  []link.Project
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := cl.Contracts(gctx)
		if err != nil {
			return eris.Wrap(err, "link: load contracts")
		}
		contracts = c
		return nil
	})
	g.Go(func() error {
		p, err := pl.Projects(gctx)
		if err != nil {
			return eris.Wrap(err, "link: load projects")
		}
		projects = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return contracts, projects, nil
}

// runLink runs one linking pass under the pass log.
func runLink(ctx context.Context, out io.Writer, linker *link.Linker, tr tracker, contracts []link.Contract, projects []link.Project) error {
	var report *link.LinkReport
	err := tr.Track(ctx, "link", func(ctx context.Context) (map[string]int, error) {
		r, err := linker.Run(ctx, contracts, projects)
		if err != nil {
			return nil, err
		}
		report = r
		return r.Counts(), nil
	})
	if report == nil {
		return eris.Wrap(err, "link")
	}
	if err != nil {
		zap.L().Warn("pass log not updated", zap.String("command", "link"), zap.Error(err))
	}

	printCounts(out, "Linked", report.Counts())
	printFailures(out, report.Failures)
	return nil
}
