package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biscayne-labs/resilience-cli/internal/store"
	"github.com/biscayne-labs/resilience-cli/internal/tracts"
)

var importCmd = &cobra.Command{
	Use:   "import <shapefile|zip>",
	Short: "Import census-tract boundaries into the store",
	Long: `Reads a TIGER/Line tract shapefile (or zip bundle) and upserts the
boundaries into the store as EWKB geometries keyed by GEOID. Records without
a GEOID or with unsupported geometry are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fc, err := tracts.Load(args[0])
		if err != nil {
			return eris.Wrap(err, "import")
		}

		rows := make([]store.Tract, 0, len(fc.Features))
		var skipped int
		for _, f := range fc.Features {
			geoid, _ := f.Properties["GEOID"].(string)
			if geoid == "" {
				skipped++
				continue
			}

			geom, err := tracts.EncodeWKB(f.Geometry)
			if err != nil || geom == nil {
				skipped++
				continue
			}

			name, _ := f.Properties["NAMELSAD"].(string)
			props := make(map[string]string, len(f.Properties))
			for k, v := range f.Properties {
				if s, ok := v.(string); ok {
					props[k] = s
				}
			}

			rows = append(rows, store.Tract{
				GEOID:      geoid,
				Name:       name,
				Properties: props,
				Geom:       geom,
			})
		}

		if skipped > 0 {
			zap.L().Warn("import: skipped tract records", zap.Int("skipped", skipped))
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := st.UpsertTracts(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import: upsert tracts")
		}

		total, err := st.CountTracts(ctx)
		if err != nil {
			return eris.Wrap(err, "import: count tracts")
		}

		fmt.Printf("Imported %d tracts (%d total in store)\n", n, total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
