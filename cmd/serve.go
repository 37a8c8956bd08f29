package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biscayne-labs/resilience-cli/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve classified layers over HTTP",
	Long: `Starts the API server. Layers, statistics, and MapLibre styles are
served from the most recent snapshot; POST /refresh re-runs the pipeline
without blocking readers. The latest stored snapshot is loaded at startup so
the dashboard has data before the first refresh completes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		engine := buildEngine(cfg.Sources)

		// Warm start from the last persisted snapshot, if any.
		if snap, err := st.LatestSnapshot(ctx); err != nil {
			zap.L().Warn("serve: load latest snapshot", zap.Error(err))
		} else if snap != nil {
			engine.Restore(snap)
			zap.L().Info("serve: restored snapshot",
				zap.String("run_id", snap.RunID),
				zap.Uint64("generation", snap.Generation),
			)
		}

		srv := server.New(engine, st, server.Options{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			SnapshotKeep:   cfg.Store.MaxSnapshots,
		})

		if noRefresh, _ := cmd.Flags().GetBool("no-refresh"); !noRefresh {
			go srv.RefreshNow(ctx)
		}

		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().Bool("no-refresh", false, "skip the initial refresh on startup")
	rootCmd.AddCommand(serveCmd)
}
