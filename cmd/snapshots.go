package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stored snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		limit, _ := cmd.Flags().GetInt("limit")
		metas, err := st.ListSnapshots(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "snapshots: list")
		}

		if len(metas) == 0 {
			fmt.Println("No snapshots stored yet")
			return nil
		}

		p := message.NewPrinter(language.English)
		p.Printf("%-38s %-6s %10s  %-20s %s\n", "Run ID", "Gen", "Features", "Layers", "Created At")
		fmt.Println(strings.Repeat("-", 100))
		for _, m := range metas {
			p.Printf("%-38s %-6d %10d  %-20s %s\n",
				m.RunID, m.Generation, m.FeatureCount,
				strings.Join(m.Layers, ","), m.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		keep, _ := cmd.Flags().GetInt("keep")
		if keep <= 0 {
			keep = cfg.Store.MaxSnapshots
		}

		deleted, err := st.PruneSnapshots(ctx, keep)
		if err != nil {
			return eris.Wrap(err, "snapshots: prune")
		}

		fmt.Printf("Deleted %d snapshots (kept up to %d)\n", deleted, keep)
		return nil
	},
}

func init() {
	snapshotsListCmd.Flags().Int("limit", 20, "maximum snapshots to list")
	snapshotsPruneCmd.Flags().Int("keep", 0, "snapshots to keep (default: store.max_snapshots)")
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
