package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biscayne-labs/resilience-cli/internal/config"
	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"classify", "serve", "import", "snapshots", "config-init"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "resilience-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestClassifyCommand_Flags(t *testing.T) {
	for _, name := range []string{"projects-url", "risk-url", "side-table-url"} {
		require.NotNil(t, classifyCmd.Flags().Lookup(name), "classify should have --%s flag", name)
	}

	saveFlag := classifyCmd.Flags().Lookup("save")
	require.NotNil(t, saveFlag)
	assert.Equal(t, "false", saveFlag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("no-refresh")
	require.NotNil(t, flag, "serve command should have --no-refresh flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestSnapshotsCommand_HasSubcommands(t *testing.T) {
	cmds := snapshotsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["prune"])
}

func TestSideTableBinding_PicksConfiguredLayer(t *testing.T) {
	cfg = &config.Config{Layers: pipeline.DefaultLayers()}

	binding := sideTableBinding()
	assert.Equal(t, "GEO_ID", binding.IDColumn)
	assert.Equal(t, "PRED3_PE", binding.ValueColumn)
}

func TestSideTableBinding_NoneConfigured(t *testing.T) {
	cfg = &config.Config{Layers: map[string]pipeline.LayerConfig{
		"plain": {Source: pipeline.SourceRisk},
	}}

	binding := sideTableBinding()
	assert.Empty(t, binding.IDColumn)
}

func TestConfigInitCommand_WritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, configInitCmd.Flags().Set("output", out))
	t.Cleanup(func() { _ = configInitCmd.Flags().Set("output", "config.yaml") })

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: sqlite")
	assert.Contains(t, string(data), "RISK_RATNG")

	// Without --force a second run must refuse to overwrite.
	err = configInitCmd.RunE(configInitCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
