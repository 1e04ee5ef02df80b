package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/graphannis-go/graphannis/pkg/updatelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	c := Default()
	assert.Equal(t, "./data", c.Database.DataDir)
	assert.Equal(t, "immediate", c.WAL.SyncMode)
	assert.Equal(t, int64(5_000_000), c.Optimize.MaxNodesForDiskBadger)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("GRAPHANNIS_DATA_DIR", "/var/lib/graphannis")
	t.Setenv("GRAPHANNIS_WAL_SYNC_MODE", "batch")
	t.Setenv("GRAPHANNIS_OPTIMIZE_MAX_NODES_DISK", "1000")

	c := LoadFromEnv()
	assert.Equal(t, "/var/lib/graphannis", c.Database.DataDir)
	assert.Equal(t, "batch", c.WAL.SyncMode)
	assert.Equal(t, int64(1000), c.Optimize.MaxNodesForDiskBadger)
}

func TestLoadFromYAMLMissingFileReturnsBase(t *testing.T) {
	base := Default()
	c, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"), base)
	require.NoError(t, err)
	assert.Same(t, base, c)
}

func TestLoadFromYAMLOverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphannis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  data_dir: /srv/corpora\n"), 0o644))

	c, err := LoadFromYAML(path, Default())
	require.NoError(t, err)
	assert.Equal(t, "/srv/corpora", c.Database.DataDir)
	assert.Equal(t, "immediate", c.WAL.SyncMode)
}

func TestParseSyncMode(t *testing.T) {
	mode, err := ParseSyncMode("batch")
	require.NoError(t, err)
	assert.Equal(t, updatelog.SyncBatch, mode)

	_, err = ParseSyncMode("bogus")
	assert.Error(t, err)
}
