package backingfs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/backingfs"
)

func TestChaosInjectsWriteFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.crit")

	chaos := backingfs.NewChaos(backingfs.NewReal(), backingfs.ChaosConfig{WriteFailRate: 1.0}, 1)

	err := chaos.WriteFileAtomic(path, []byte("data"), 0o644)
	require.Error(t, err)
}

func TestChaosDisableBypassesInjection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.crit")

	chaos := backingfs.NewChaos(backingfs.NewReal(), backingfs.ChaosConfig{WriteFailRate: 1.0}, 1)
	chaos.Disable()

	err := chaos.WriteFileAtomic(path, []byte("data"), 0o644)
	require.NoError(t, err)

	got, err := chaos.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestChaosNeverInjectsAtZeroRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.crit")

	chaos := backingfs.NewChaos(backingfs.NewReal(), backingfs.ChaosConfig{}, 1)

	require.NoError(t, chaos.WriteFileAtomic(path, []byte("ok"), 0o644))
}
