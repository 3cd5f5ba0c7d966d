// Package pipeline implements the merge-repartition write algorithm: every
// logical write reconstructs the full file, patches in the new bytes,
// re-runs the bound partitioner over the whole thing, and writes the three
// sidecar artefacts back out.
package pipeline

import (
	"fmt"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
	"github.com/partfs/partfs/internal/streamio"
)

const (
	critPerm    = 0o644
	noncritPerm = 0o644
	mappingPerm = 0o644
)

// Write performs the merge-repartition pipeline for a logical write of buf at
// offset against the partitioned file whose mapping sidecar lives at
// mappingPath. p is the partitioner bound to the logical file's extension.
// fsys.Lock(mappingPath) is held for the duration, so concurrent writers to
// the same logical file serialize instead of racing the read-patch-write
// sequence.
func Write(fsys backingfs.FS, p partition.Partitioner, mappingPath string, buf []byte, offset uint64) (int, error) {
	lock, err := fsys.Lock(mappingPath)
	if err != nil {
		return 0, fmt.Errorf("pipeline: lock %s: %w", mappingPath, err)
	}
	defer lock.Close()

	return writeLocked(fsys, p, mappingPath, buf, offset)
}

func writeLocked(fsys backingfs.FS, p partition.Partitioner, mappingPath string, buf []byte, offset uint64) (int, error) {
	var (
		tbl *mapping.Table
		n   uint64
	)

	exists, err := fsys.Exists(mappingPath)
	if err != nil {
		return 0, fmt.Errorf("pipeline: stat %s: %w", mappingPath, err)
	}

	if exists {
		tbl, err = mapping.Load(fsys, mappingPath)
		if err != nil {
			return 0, fmt.Errorf("pipeline: load %s: %w", mappingPath, err)
		}

		n = tbl.Size()
	}

	reconLen := n
	if end := offset + uint64(len(buf)); end > reconLen {
		reconLen = end
	}

	reconBuf := make([]byte, reconLen)

	if n > 0 {
		if err := streamio.ReadTable(fsys, tbl, mappingPath, reconBuf[:n], 0); err != nil {
			return 0, fmt.Errorf("pipeline: reconstruct: %w", err)
		}
	}

	copy(reconBuf[offset:], buf)

	newTbl, err := p.Partition(reconBuf)
	if err != nil {
		return 0, fmt.Errorf("pipeline: repartition: %w", err)
	}

	critBytes, noncritBytes := splitStreams(newTbl, reconBuf)

	critPath, noncritPath := streamio.StreamPaths(mappingPath)

	if err := fsys.WriteFileAtomic(critPath, critBytes, critPerm); err != nil {
		return 0, fmt.Errorf("pipeline: write %s: %w", critPath, err)
	}

	if err := fsys.WriteFileAtomic(noncritPath, noncritBytes, noncritPerm); err != nil {
		return 0, fmt.Errorf("pipeline: write %s: %w", noncritPath, err)
	}

	if err := mapping.Save(fsys, mappingPath, newTbl); err != nil {
		return 0, fmt.Errorf("pipeline: write %s: %w", mappingPath, err)
	}

	return len(buf), nil
}

// Truncate resizes the logical file to size, zero-extending or tail-clipping
// the current reconstruction, then repartitioning over the result. It is the
// gateway's implementation of the optional truncate operation.
func Truncate(fsys backingfs.FS, p partition.Partitioner, mappingPath string, size uint64) error {
	lock, err := fsys.Lock(mappingPath)
	if err != nil {
		return fmt.Errorf("pipeline: lock %s: %w", mappingPath, err)
	}
	defer lock.Close()

	var (
		tbl *mapping.Table
		n   uint64
	)

	exists, err := fsys.Exists(mappingPath)
	if err != nil {
		return fmt.Errorf("pipeline: stat %s: %w", mappingPath, err)
	}

	if exists {
		tbl, err = mapping.Load(fsys, mappingPath)
		if err != nil {
			return fmt.Errorf("pipeline: load %s: %w", mappingPath, err)
		}

		n = tbl.Size()
	}

	reconBuf := make([]byte, size)

	if n > 0 {
		readLen := n
		if readLen > size {
			readLen = size
		}

		if err := streamio.ReadTable(fsys, tbl, mappingPath, reconBuf[:readLen], 0); err != nil {
			return fmt.Errorf("pipeline: reconstruct: %w", err)
		}
	}

	newTbl, err := p.Partition(reconBuf)
	if err != nil {
		return fmt.Errorf("pipeline: repartition: %w", err)
	}

	critBytes, noncritBytes := splitStreams(newTbl, reconBuf)

	critPath, noncritPath := streamio.StreamPaths(mappingPath)

	if err := fsys.WriteFileAtomic(critPath, critBytes, critPerm); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", critPath, err)
	}

	if err := fsys.WriteFileAtomic(noncritPath, noncritBytes, noncritPerm); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", noncritPath, err)
	}

	return mapping.Save(fsys, mappingPath, newTbl)
}

// Create writes a fresh, empty mapping sidecar for a newly created
// partitioned file. .crit and .noncrit are left absent; they appear on the
// first write.
func Create(fsys backingfs.FS, mappingPath string) error {
	return mapping.Save(fsys, mappingPath, mapping.New())
}

// splitStreams walks tbl in ascending logical order and appends the matching
// slice of reconBuf to the critical or non-critical vector according to tag.
// Physical ranges are not read: the result matches tbl only when, within each
// tag, the partitioner's physical ranges form a contiguous prefix in logical
// order, and this walk does not check that.
func splitStreams(tbl *mapping.Table, reconBuf []byte) (crit, noncrit []byte) {
	for _, e := range tbl.Iter() {
		span := reconBuf[e.Logical.Lo : e.Logical.Hi+1]

		if e.Tag == mapping.Critical {
			crit = append(crit, span...)
		} else {
			noncrit = append(noncrit, span...)
		}
	}

	return crit, noncrit
}
