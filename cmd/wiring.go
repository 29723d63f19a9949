package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altgovph/procurement-cli/internal/config"
	"github.com/altgovph/procurement-cli/internal/db"
	"github.com/altgovph/procurement-cli/internal/link"
	"github.com/altgovph/procurement-cli/internal/registry"
	"github.com/altgovph/procurement-cli/internal/resilience"
	"github.com/altgovph/procurement-cli/internal/resolve"
	"github.com/altgovph/procurement-cli/internal/source"
)

// tracker records a pass in the pass log. *passlog.Log implements it.
type tracker interface {
	Track(ctx context.Context, pass string, fn func(ctx context.Context) (map[string]int, error)) error
}

// registryPool connects to the registry database.
func registryPool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, "registry", cfg.Store.DatabaseURL)
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.NewRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
}

// vocabulary returns the default word lists, extended by the configured
// vocabulary file if any.
func vocabulary(c *config.Config) (resolve.Vocabulary, error) {
	if c.Resolve.VocabularyFile == "" {
		return resolve.DefaultVocabulary(), nil
	}
	return resolve.LoadVocabulary(c.Resolve.VocabularyFile)
}

func syncConfig(c *config.Config) (registry.SyncConfig, error) {
	policy, err := resolve.ParsePolicy(c.Resolve.Policy)
	if err != nil {
		return registry.SyncConfig{}, err
	}
	return registry.SyncConfig{
		Threshold:         c.Resolve.Threshold,
		VerifyThreshold:   c.Resolve.VerifyThreshold,
		Policy:            policy,
		MinFragmentLength: c.Resolve.MinFragmentLength,
		Retry:             retryConfig(c),
	}, nil
}

func newSyncer(c *config.Config, store registry.Store) (*registry.Syncer, error) {
	vocab, err := vocabulary(c)
	if err != nil {
		return nil, err
	}
	sc, err := syncConfig(c)
	if err != nil {
		return nil, err
	}
	return registry.NewSyncer(store, vocab, sc), nil
}

func linkConfig(c *config.Config) link.Config {
	return link.Config{
		AmountTolerance: c.Link.AmountTolerance,
		AmountGate:      c.Link.AmountGate,
		ContractorFloor: c.Link.ContractorFloor,
		RegionScore:     c.Link.RegionScore,
		AcceptAt:        c.Link.AcceptAt,
		Weights: link.Weights{
			Location:   c.Link.Weights.Location,
			Amount:     c.Link.Weights.Amount,
			Contractor: c.Link.Weights.Contractor,
		},
	}
}

func newLinker(c *config.Config, store link.Store) (*link.Linker, error) {
	vocab, err := vocabulary(c)
	if err != nil {
		return nil, err
	}
	return link.NewLinker(store, linkConfig(c), resolve.NewNormalizer(vocab), link.Options{
		ChunkSize: c.Link.ChunkSize,
		Retry:     retryConfig(c),
	}), nil
}

func floodOptions(c *config.Config) source.FloodOptions {
	return source.FloodOptions{
		BaseURL:       c.Sources.Flood.BaseURL,
		Index:         c.Sources.Flood.Index,
		APIKey:        c.Sources.Flood.APIKey,
		PageSize:      c.Sources.Flood.PageSize,
		RatePerSecond: c.Sources.Flood.RatePerSecond,
		Timeout:       time.Duration(c.Sources.Flood.TimeoutSecs) * time.Second,
		Retry:         retryConfig(c),
		Breaker: resilience.BreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			ResetTimeout:     time.Duration(c.Breaker.ResetTimeoutSecs) * time.Second,
		},
	}
}

// printCounts writes counts as an aligned two-column table, keys sorted.
func printCounts(out io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, _ = fmt.Fprintln(out, title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s\t%d\n", k, counts[k])
	}
	_ = w.Flush()
}

func printFailures(out io.Writer, failures []resilience.Failure) {
	if len(failures) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "  %d failures:\n", len(failures))
	for _, f := range failures {
		_, _ = fmt.Fprintf(out, "    %s %s [%s]: %s\n", f.Operation, f.Key, f.Class, truncate(f.Error, 100))
	}
}
