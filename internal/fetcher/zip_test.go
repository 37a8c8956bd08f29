package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtractZIP_All(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"tracts.shp": "shape data",
		"tracts.dbf": "attr data",
	})
	destDir := t.TempDir()

	paths, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestExtractZIPFile_Named(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"tracts.shp": "shape data",
		"tracts.dbf": "attr data",
	})
	destDir := t.TempDir()

	path, err := ExtractZIPFile(zipPath, "tracts.shp", destDir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shape data", string(data))
}

func TestExtractZIPFile_Missing(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{"tracts.shp": "x"})

	_, err := ExtractZIPFile(zipPath, "nope.shp", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
