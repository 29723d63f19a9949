package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/altgovph/procurement-cli/internal/db"
	"github.com/altgovph/procurement-cli/internal/passlog"
	"github.com/altgovph/procurement-cli/internal/registry"
	"github.com/altgovph/procurement-cli/internal/source"
)

// nameLoader reads raw contractor name strings from one upstream source.
type nameLoader interface {
	ContractorNames(ctx context.Context) ([]string, error)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync contractor names into the registry",
	Long: `Reads contractor name strings from the selected sources, splits joint
ventures and former-name annotations, and merges the resulting names into
the contractor registry.

Sources are synced one at a time in the order flood, dime, philgeps, so
later sources deduplicate against names created by earlier ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		sourcesFlag, _ := cmd.Flags().GetString("source")
		sources, err := parseSources(sourcesFlag)
		if err != nil {
			return err
		}

		pool, err := registryPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		loaders := make(map[registry.Source]nameLoader, len(sources))
		for _, src := range sources {
			switch src {
			case registry.SourceFlood:
				fc, err := source.NewFloodClient(floodOptions(cfg))
				if err != nil {
					return eris.Wrap(err, "sync: flood client")
				}
				loaders[src] = fc
			case registry.SourceDIME:
				p, err := db.Connect(ctx, "dime", cfg.Sources.DIME.DatabaseURL)
				if err != nil {
					return err
				}
				defer p.Close()
				loaders[src] = source.NewDIMEReader(p)
			case registry.SourcePhilGEPS:
				p, err := db.Connect(ctx, "philgeps", cfg.Sources.PhilGEPS.DatabaseURL)
				if err != nil {
					return err
				}
				defer p.Close()
				loaders[src] = source.NewPhilGEPSReader(p)
			}
		}

		syncer, err := newSyncer(cfg, registry.NewPostgresStore(pool))
		if err != nil {
			return eris.Wrap(err, "sync: build syncer")
		}

		log.Info("loading sources", zap.Strings("sources", sourceNames(sources)))
		names, err := loadNames(ctx, loaders, sources)
		if err != nil {
			return err
		}

		if err := runSync(ctx, os.Stdout, syncer, passlog.New(pool), sources, names); err != nil {
			return err
		}

		fmt.Println("Sync complete")
		return nil
	},
}

func init() {
	syncCmd.Flags().String("source", "all", "comma-separated sources to sync: flood, dime, philgeps or all")
	rootCmd.AddCommand(syncCmd)
}

// parseSources parses the --source flag. The result is always in sync order
// with duplicates removed.
func parseSources(s string) ([]registry.Source, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return append([]registry.Source(nil), registry.AllSources...), nil
	}

	want := make(map[registry.Source]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.EqualFold(strings.TrimSpace(part), "all") {
			return append([]registry.Source(nil), registry.AllSources...), nil
		}
		src, err := registry.ParseSource(part)
		if err != nil {
			return nil, err
		}
		want[src] = true
	}

	var out []registry.Source
	for _, src := range registry.AllSources {
		if want[src] {
			out = append(out, src)
		}
	}
	return out, nil
}

// loadNames reads every selected source concurrently. Any load failure
// aborts the command before the registry is touched.
func loadNames(ctx context.Context, loaders map[registry.Source]nameLoader, sources []registry.Source) (map[registry.Source][]string, error) {
	results := make([][]string, len(sources))

	for _, src := range sources {
		if _, ok := loaders[src]; !ok {
			return nil, eris.Errorf("sync: no loader for source %s", src)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			names, err := loaders[src].ContractorNames(gctx)
			if err != nil {
				return eris.Wrapf(err, "sync: load %s", src)
			}
			results[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[registry.Source][]string, len(sources))
	for i, src := range sources {
		out[src] = results[i]
	}
	return out, nil
}

// runSync syncs each source in order, recording one pass per source. A pass
// that fails stops the run; a pass-log error after a finished pass does not.
func runSync(ctx context.Context, out io.Writer, syncer *registry.Syncer, tr tracker, sources []registry.Source, names map[registry.Source][]string) error {
	log := zap.L().With(zap.String("command", "sync"))
	for _, src := range sources {
		var report *registry.SyncReport
		err := tr.Track(ctx, "sync:"+string(src), func(ctx context.Context) (map[string]int, error) {
			r, err := syncer.SyncSource(ctx, src, names[src])
			if err != nil {
				return nil, err
			}
			report = r
			return r.Counts(), nil
		})
		if report == nil {
			return eris.Wrapf(err, "sync: %s", src)
		}
		if err != nil {
			log.Warn("pass log not updated", zap.String("source", string(src)), zap.Error(err))
		}

		printCounts(out, fmt.Sprintf("Synced %s", src), report.Counts())
		printFailures(out, report.Failures)
	}
	return nil
}

func sourceNames(sources []registry.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
