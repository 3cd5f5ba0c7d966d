package streamio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/streamio"
)

func writeSidecars(t *testing.T, fsys backingfs.FS, mappingPath string, tbl *mapping.Table, crit, noncrit []byte) {
	t.Helper()

	critPath, noncritPath := streamio.StreamPaths(mappingPath)
	require.NoError(t, fsys.WriteFileAtomic(critPath, crit, 0o644))
	require.NoError(t, fsys.WriteFileAtomic(noncritPath, noncrit, 0o644))
	require.NoError(t, mapping.Save(fsys, mappingPath, tbl))
}

// TestReadSpec14ByteExample exercises spec.md's text-file worked example
// directly against streamio, bypassing the partitioner: "HelloWorld1234"
// splits as [0-4]=crit "Hello", [5-9]=noncrit "World", [10-13]=crit "1234".
func TestReadSpec14ByteExample(t *testing.T) {
	dir := t.TempDir()
	mp := dir + "/f.txt.mapping"

	tbl := mapping.New()
	require.NoError(t, tbl.Insert(0, 4, 0, 4, mapping.Critical))
	require.NoError(t, tbl.Insert(5, 9, 0, 4, mapping.NonCritical))
	require.NoError(t, tbl.Insert(10, 13, 5, 8, mapping.Critical))

	fsys := backingfs.NewReal()
	writeSidecars(t, fsys, mp, tbl, []byte("Hello1234"), []byte("World"))

	got := make([]byte, 14)
	require.NoError(t, streamio.Read(fsys, mp, got, 0))
	assert.Equal(t, "HelloWorld1234", string(got))
}

func TestReadPartialRangeSpanningTwoEntries(t *testing.T) {
	dir := t.TempDir()
	mp := dir + "/f.txt.mapping"

	tbl := mapping.New()
	require.NoError(t, tbl.Insert(0, 4, 0, 4, mapping.Critical))
	require.NoError(t, tbl.Insert(5, 9, 0, 4, mapping.NonCritical))
	require.NoError(t, tbl.Insert(10, 13, 5, 8, mapping.Critical))

	fsys := backingfs.NewReal()
	writeSidecars(t, fsys, mp, tbl, []byte("Hello1234"), []byte("World"))

	got := make([]byte, 4)
	require.NoError(t, streamio.Read(fsys, mp, got, 3))
	assert.Equal(t, "loWo", string(got))
}

func TestReadUncoveredRangeIsZeroFilled(t *testing.T) {
	dir := t.TempDir()
	mp := dir + "/f.dng.mapping"

	tbl := mapping.New()
	require.NoError(t, tbl.Insert(0, 3, 0, 3, mapping.Critical))

	fsys := backingfs.NewReal()
	writeSidecars(t, fsys, mp, tbl, []byte("abcd"), nil)

	got := make([]byte, 8)
	require.NoError(t, streamio.Read(fsys, mp, got, 0))
	assert.Equal(t, []byte("abcd\x00\x00\x00\x00"), got)
}

func TestReadEmptyBufferIsNoop(t *testing.T) {
	fsys := backingfs.NewReal()
	assert.NoError(t, streamio.Read(fsys, "/nonexistent/does-not-matter.mapping", nil, 0))
}

func TestReadMissingMappingIsAnError(t *testing.T) {
	fsys := backingfs.NewReal()
	buf := make([]byte, 4)
	assert.Error(t, streamio.Read(fsys, t.TempDir()+"/missing.mapping", buf, 0))
}

func TestStreamPathsDerivesSiblingNames(t *testing.T) {
	crit, noncrit := streamio.StreamPaths("/a/b/photo.dng.mapping")
	assert.Equal(t, "/a/b/photo.dng.crit", crit)
	assert.Equal(t, "/a/b/photo.dng.noncrit", noncrit)
}
