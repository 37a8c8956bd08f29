package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/biscayne-labs/resilience-cli/internal/fetcher"
	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
	"github.com/biscayne-labs/resilience-cli/internal/store"
)

// buildEngine wires the configured sources into a pipeline engine.
func buildEngine(sources pipeline.SourceConfig) *pipeline.Engine {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{})

	loader := pipeline.NewSourceLoader(httpFetcher, ftpFetcher, sources, sideTableBinding())
	return pipeline.NewEngine(loader, cfg.Layers)
}

// sideTableBinding returns the first configured side-table binding; the
// loader fetches one auxiliary table per refresh.
func sideTableBinding() pipeline.SideTableBinding {
	for _, layer := range cfg.Layers {
		if layer.SideTable != nil {
			return *layer.SideTable
		}
	}
	return pipeline.SideTableBinding{}
}

// openStore opens the configured snapshot store and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
