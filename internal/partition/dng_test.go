package partition_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
)

// dngSample builds a minimal little-endian TIFF buffer: an 8-byte header, a
// 2-entry IFD (StripOffsets, StripByteCounts) describing a 5-byte strip
// immediately following the IFD, and trailing bytes covered by nothing, to
// exercise the gap-filling resolution.
func dngSample(trailingGap int) []byte {
	const (
		ifdOff   = 8
		n        = 2
		ifdLen   = 2 + 12*n + 4
		stripOff = ifdOff + ifdLen
		stripLen = 5
	)

	size := stripOff + stripLen + trailingGap
	buf := make([]byte, size)

	buf[0], buf[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(buf[2:4], 42)
	binary.LittleEndian.PutUint32(buf[4:8], ifdOff)

	binary.LittleEndian.PutUint16(buf[ifdOff:ifdOff+2], n)

	e0 := ifdOff + 2
	binary.LittleEndian.PutUint16(buf[e0:e0+2], 0x0111) // StripOffsets
	binary.LittleEndian.PutUint16(buf[e0+2:e0+4], 3)     // SHORT
	binary.LittleEndian.PutUint32(buf[e0+4:e0+8], 1)     // count
	binary.LittleEndian.PutUint32(buf[e0+8:e0+12], stripOff)

	e1 := e0 + 12
	binary.LittleEndian.PutUint16(buf[e1:e1+2], 0x0117) // StripByteCounts
	binary.LittleEndian.PutUint16(buf[e1+2:e1+4], 3)    // SHORT
	binary.LittleEndian.PutUint32(buf[e1+4:e1+8], 1)    // count
	binary.LittleEndian.PutUint32(buf[e1+8:e1+12], stripLen)

	for i := 0; i < stripLen; i++ {
		buf[stripOff+i] = byte(0x40 + i)
	}

	return buf
}

func TestDNGPartitionerExactCoverage(t *testing.T) {
	buf := dngSample(0)

	p := partition.Dispatch("x.dng")
	tbl := assertPartitionsWholeBuffer(t, p, buf)

	entries := tbl.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, mapping.NonCritical, entries[2].Tag)
}

func TestDNGPartitionerFillsTrailingGapAsCritical(t *testing.T) {
	buf := dngSample(7)

	p := partition.Dispatch("x.dng")
	tbl := assertPartitionsWholeBuffer(t, p, buf)

	entries := tbl.Iter()
	require.Len(t, entries, 4)

	last := entries[len(entries)-1]
	assert.Equal(t, mapping.Critical, last.Tag)
	assert.Equal(t, uint64(len(buf)-7), last.Logical.Lo)
	assert.Equal(t, uint64(len(buf)-1), last.Logical.Hi)
}

func TestDNGPartitionerBigEndian(t *testing.T) {
	buf := dngSample(3)
	buf[0], buf[1] = 'I', 'I'

	// Re-encode as big-endian by rebuilding with MM order.
	const (
		ifdOff   = 8
		n        = 2
		stripOff = ifdOff + 2 + 12*n + 4
		stripLen = 5
	)

	size := stripOff + stripLen + 3
	beBuf := make([]byte, size)
	beBuf[0], beBuf[1] = 'M', 'M'
	binary.BigEndian.PutUint16(beBuf[2:4], 42)
	binary.BigEndian.PutUint32(beBuf[4:8], ifdOff)
	binary.BigEndian.PutUint16(beBuf[ifdOff:ifdOff+2], n)

	e0 := ifdOff + 2
	binary.BigEndian.PutUint16(beBuf[e0:e0+2], 0x0111)
	binary.BigEndian.PutUint16(beBuf[e0+2:e0+4], 3)
	binary.BigEndian.PutUint32(beBuf[e0+4:e0+8], 1)
	binary.BigEndian.PutUint32(beBuf[e0+8:e0+12], stripOff)

	e1 := e0 + 12
	binary.BigEndian.PutUint16(beBuf[e1:e1+2], 0x0117)
	binary.BigEndian.PutUint16(beBuf[e1+2:e1+4], 3)
	binary.BigEndian.PutUint32(beBuf[e1+4:e1+8], 1)
	binary.BigEndian.PutUint32(beBuf[e1+8:e1+12], stripLen)

	p := partition.Dispatch("x.tif")
	assertPartitionsWholeBuffer(t, p, beBuf)
}

func TestDNGPartitionerRejectsBadByteOrderMarker(t *testing.T) {
	buf := dngSample(0)
	buf[0], buf[1] = 'X', 'X'

	p := partition.Dispatch("x.dng")
	_, err := p.Partition(buf)
	assert.ErrorIs(t, err, partition.ErrInvalidFormat)
}

func TestDNGPartitionerRejectsShortHeader(t *testing.T) {
	buf := []byte{'I', 'I', 0x2A, 0x00}

	p := partition.Dispatch("x.tiff")
	_, err := p.Partition(buf)
	assert.ErrorIs(t, err, partition.ErrInvalidFormat)
}

func TestDNGPartitionerEmptyBuffer(t *testing.T) {
	p := partition.Dispatch("x.dng")
	tbl, err := p.Partition(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}
