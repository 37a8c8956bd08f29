package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run one classification pass over all configured layers",
	Long: `Fetches every configured source, normalizes coordinates, joins side
tables, classifies features, and prints per-layer statistics. A source that
cannot be fetched degrades to an empty input; the run never fails on a
missing source.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sources := cfg.Sources
		if v, _ := cmd.Flags().GetString("projects-url"); v != "" {
			sources.ProjectsURL = v
		}
		if v, _ := cmd.Flags().GetString("risk-url"); v != "" {
			sources.RiskURL = v
		}
		if v, _ := cmd.Flags().GetString("side-table-url"); v != "" {
			sources.SideTableURL = v
		}

		engine := buildEngine(sources)
		snap, err := engine.Refresh(ctx)
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := writeSnapshotFile(snap, out); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", out)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(snap), "classify: encode snapshot")
		}

		printSnapshot(snap)

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.SaveSnapshot(ctx, snap); err != nil {
				return eris.Wrap(err, "classify: save snapshot")
			}
			if keep := cfg.Store.MaxSnapshots; keep > 0 {
				if _, err := st.PruneSnapshots(ctx, keep); err != nil {
					zap.L().Warn("classify: prune snapshots", zap.Error(err))
				}
			}
			fmt.Printf("Saved snapshot %s\n", snap.RunID)
		}

		return nil
	},
}

func init() {
	classifyCmd.Flags().String("projects-url", "", "override the projects source URL")
	classifyCmd.Flags().String("risk-url", "", "override the risk source URL")
	classifyCmd.Flags().String("side-table-url", "", "override the side table URL")
	classifyCmd.Flags().Bool("save", false, "persist the snapshot to the store")
	classifyCmd.Flags().Bool("json", false, "print the full snapshot as JSON instead of a summary")
	classifyCmd.Flags().String("output", "", "write the full snapshot JSON to a file")
	rootCmd.AddCommand(classifyCmd)
}

// writeSnapshotFile writes the full snapshot as indented JSON.
func writeSnapshotFile(snap *pipeline.Snapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "classify: marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "classify: write %s", path)
	}
	return nil
}

// printSnapshot writes a per-layer summary table to stdout.
func printSnapshot(snap *pipeline.Snapshot) {
	p := message.NewPrinter(language.English)

	p.Printf("Run %s (generation %d): %d features across %d layers\n\n",
		snap.RunID, snap.Generation, snap.FeatureCount(), len(snap.Layers))

	names := make([]string, 0, len(snap.Layers))
	for name := range snap.Layers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lr := snap.Layers[name]
		if lr == nil || lr.Stats == nil {
			continue
		}
		p.Printf("Layer %s: %d features\n", name, lr.Stats.Total)

		for field, cats := range lr.Stats.Categories {
			p.Printf("  %s: %s\n", field, strings.Join(cats, ", "))
		}

		fields := make([]string, 0, len(lr.Stats.Fields))
		for f := range lr.Stats.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fs := lr.Stats.Fields[f]
			if fs.Minimum == nil || fs.Maximum == nil {
				p.Printf("  %s: no numeric samples (%d missing)\n", f, fs.Missing)
				continue
			}
			p.Printf("  %s: min %.2f  max %.2f  (%d missing)\n", f, *fs.Minimum, *fs.Maximum, fs.Missing)
		}
		fmt.Println()
	}
}
