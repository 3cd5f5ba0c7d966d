package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/config"
)

func TestDefaultLockTimeout(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 2*time.Second, cfg.LockTimeoutDuration())
}

func TestLoadAppliesProjectOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-such-config-home"))

	project := `{
		// trailing comma and comments are fine, this is JSONC
		"mountpoint": "/mnt/partfs",
		"backing_dir": "/var/lib/partfs",
		"lock_timeout": "500ms",
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partfs.json"), []byte(project), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/partfs", cfg.Mountpoint)
	assert.Equal(t, "/var/lib/partfs", cfg.BackingDir)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeoutDuration())
	assert.Equal(t, "quiet", cfg.LogLevel)
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-such-config-home"))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-such-config-home"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partfs.json"), []byte("{not json"), 0o644))

	_, err := config.Load(dir)
	assert.Error(t, err)
}
