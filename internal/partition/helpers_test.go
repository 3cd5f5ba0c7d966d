package partition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
)

// assertPartitionsWholeBuffer checks the partition-property invariant
// (spec.md §8): the union of logical ranges equals [0, len(buf)-1] with
// pairwise disjointness, and reconstructs the original buffer by walking the
// table and pulling bytes from two synthetic per-tag streams, verifying
// round-trip identity.
func assertPartitionsWholeBuffer(t *testing.T, p partition.Partitioner, buf []byte) *mapping.Table {
	t.Helper()

	tbl, err := p.Partition(buf)
	require.NoError(t, err)

	var crit, noncrit []byte

	var expectOff uint64

	for _, e := range tbl.Iter() {
		require.Equalf(t, expectOff, e.Logical.Lo, "gap or overlap before logical offset %d", e.Logical.Lo)
		require.Equal(t, e.Logical.Len(), e.Physical.Len())

		expectOff = e.Logical.Hi + 1

		span := buf[e.Logical.Lo : e.Logical.Hi+1]
		if e.Tag == mapping.Critical {
			require.Equal(t, uint64(len(crit)), e.Physical.Lo)
			crit = append(crit, span...)
		} else {
			require.Equal(t, uint64(len(noncrit)), e.Physical.Lo)
			noncrit = append(noncrit, span...)
		}
	}

	require.Equal(t, uint64(len(buf)), expectOff)

	recon := reconstruct(tbl, crit, noncrit)
	assert.Equal(t, buf, recon)

	return tbl
}

func reconstruct(tbl *mapping.Table, crit, noncrit []byte) []byte {
	out := make([]byte, tbl.Size())

	for _, e := range tbl.Iter() {
		var src []byte
		if e.Tag == mapping.Critical {
			src = crit[e.Physical.Lo : e.Physical.Hi+1]
		} else {
			src = noncrit[e.Physical.Lo : e.Physical.Hi+1]
		}

		copy(out[e.Logical.Lo:e.Logical.Hi+1], src)
	}

	return out
}
