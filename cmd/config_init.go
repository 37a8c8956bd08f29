package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/biscayne-labs/resilience-cli/internal/config"
	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

var configInitCmd = &cobra.Command{
	Use:   "config-init",
	Short: "Write a starter config.yaml with defaults and built-in layers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("output")

		if _, err := os.Stat(path); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return eris.Errorf("config-init: %s already exists (use --force to overwrite)", path)
			}
		}

		defaults := config.Config{
			Store: config.StoreConfig{
				Driver:       "sqlite",
				Path:         "resilience.db",
				MaxSnapshots: 20,
			},
			Server: config.ServerConfig{
				Port:           8080,
				AllowedOrigins: []string{"*"},
			},
			Fetch: config.FetchConfig{
				UserAgent:   "resilience-cli/1.0",
				TimeoutSecs: 60,
				MaxRetries:  3,
			},
			Layers: pipeline.DefaultLayers(),
			Log: config.LogConfig{
				Level:  "info",
				Format: "json",
			},
		}

		data, err := yaml.Marshal(defaults)
		if err != nil {
			return eris.Wrap(err, "config-init: marshal defaults")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "config-init: write %s", path)
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("output", "config.yaml", "output path")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	rootCmd.AddCommand(configInitCmd)
}
