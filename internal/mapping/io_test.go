package mapping_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tbl := mapping.New()
	require.NoError(t, tbl.Insert(0, 4, 0, 4, mapping.Critical))
	require.NoError(t, tbl.Insert(5, 9, 0, 4, mapping.NonCritical))
	require.NoError(t, tbl.Insert(10, 13, 5, 8, mapping.Critical))

	encoded := mapping.Encode(tbl)
	assert.Equal(t, "0-4 0-4 CRITICAL_DATA\n5-9 0-4 NON_CRITICAL_DATA\n10-13 5-8 CRITICAL_DATA\n", string(encoded))

	decoded, err := mapping.Decode(encoded)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(tbl.Iter(), decoded.Iter()))
}

func TestDecodeRejectsMalformedLine(t *testing.T) {
	_, err := mapping.Decode([]byte("not-a-valid-line\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapping.ErrMalformed))
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := mapping.Decode([]byte("0-4 0-4 MAYBE_DATA\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapping.ErrMalformed))
}

func TestDecodeRejectsOverlappingEntries(t *testing.T) {
	_, err := mapping.Decode([]byte("0-4 0-4 CRITICAL_DATA\n2-6 5-9 NON_CRITICAL_DATA\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapping.ErrMalformed))
}

func TestSaveLoadIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png.mapping")
	fsys := backingfs.NewReal()

	tbl := mapping.New()
	require.NoError(t, tbl.Insert(0, 4, 0, 4, mapping.Critical))

	require.NoError(t, mapping.Save(fsys, path, tbl))

	loaded, err := mapping.Load(fsys, path)
	require.NoError(t, err)

	other := filepath.Join(dir, "roundtrip.mapping")
	require.NoError(t, mapping.Save(fsys, other, loaded))

	a, err := fsys.ReadFile(path)
	require.NoError(t, err)
	b, err := fsys.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSingleLineSaveLoadByteCompare(t *testing.T) {
	dir := t.TempDir()
	fsys := backingfs.NewReal()

	src := filepath.Join(dir, "src.mapping")
	require.NoError(t, fsys.WriteFileAtomic(src, []byte("0-4 0-4 CRITICAL_DATA\n"), 0o644))

	tbl, err := mapping.Load(fsys, src)
	require.NoError(t, err)

	dst := filepath.Join(dir, "dst.mapping")
	require.NoError(t, mapping.Save(fsys, dst, tbl))

	a, err := fsys.ReadFile(src)
	require.NoError(t, err)
	b, err := fsys.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
