package partition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
)

func TestRawPartitionerShortBufferAllCritical(t *testing.T) {
	buf := make([]byte, 100)

	p := partition.Dispatch("x.raw")
	tbl := assertPartitionsWholeBuffer(t, p, buf)

	entries := tbl.Iter()
	require.Len(t, entries, 1)
	assert.Equal(t, mapping.Critical, entries[0].Tag)
}

func TestRawPartitionerSplitsAtHeaderBoundary(t *testing.T) {
	buf := make([]byte, 2048)

	p := partition.Dispatch("x.nef")
	tbl := assertPartitionsWholeBuffer(t, p, buf)

	entries := tbl.Iter()
	require.Len(t, entries, 2)

	assert.Equal(t, mapping.Critical, entries[0].Tag)
	assert.Equal(t, uint64(0), entries[0].Logical.Lo)
	assert.Equal(t, uint64(1023), entries[0].Logical.Hi)

	assert.Equal(t, mapping.NonCritical, entries[1].Tag)
	assert.Equal(t, uint64(1024), entries[1].Logical.Lo)
	assert.Equal(t, uint64(2047), entries[1].Logical.Hi)
}

func TestRawPartitionerExactHeaderSize(t *testing.T) {
	buf := make([]byte, 1024)

	p := partition.Dispatch("x.cr2")
	tbl := assertPartitionsWholeBuffer(t, p, buf)
	assert.Equal(t, 1, tbl.Len())
}

func TestRawPartitionerEmptyBuffer(t *testing.T) {
	p := partition.Dispatch("x.arw")
	tbl, err := p.Partition(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}
