// Package streamio implements the mapping-driven scatter read that pulls the
// logical bytes of a partitioned file back out of its two physical streams.
package streamio

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
)

// ErrShortRead is returned when a physical stream yields fewer bytes than a
// mapping entry promises.
var ErrShortRead = errors.New("streamio: short read from physical stream")

const mappingSuffix = ".mapping"

// StreamPaths derives the .crit and .noncrit sidecar paths from a .mapping
// path by stripping the suffix and appending the stream extension.
func StreamPaths(mappingPath string) (critPath, noncritPath string) {
	stem := strings.TrimSuffix(mappingPath, mappingSuffix)
	return stem + ".crit", stem + ".noncrit"
}

// Read loads the mapping table at mappingPath and services a logical read of
// size bytes at offset, per spec.md §4.5. buf must have length size. Bytes
// not covered by any mapping entry, including any past the end of the
// logical file, are left zero.
func Read(fsys backingfs.FS, mappingPath string, buf []byte, offset uint64) error {
	for i := range buf {
		buf[i] = 0
	}

	size := uint64(len(buf))
	if size == 0 {
		return nil
	}

	tbl, err := mapping.Load(fsys, mappingPath)
	if err != nil {
		return fmt.Errorf("streamio: load mapping: %w", err)
	}

	return ReadTable(fsys, tbl, mappingPath, buf, offset)
}

// ReadTable is Read given an already-loaded table, used by the pipeline when
// it has just loaded the table for its own purposes and would otherwise load
// it twice.
func ReadTable(fsys backingfs.FS, tbl *mapping.Table, mappingPath string, buf []byte, offset uint64) error {
	size := uint64(len(buf))
	if size == 0 {
		return nil
	}

	critPath, noncritPath := StreamPaths(mappingPath)

	reqLo, reqHi := offset, offset+size-1

	var crit, noncrit backingfs.File

	defer func() {
		if crit != nil {
			crit.Close()
		}

		if noncrit != nil {
			noncrit.Close()
		}
	}()

	for _, e := range tbl.Iter() {
		if e.Logical.Hi < reqLo || e.Logical.Lo > reqHi {
			continue
		}

		overlapLo := max(reqLo, e.Logical.Lo)
		overlapHi := min(reqHi, e.Logical.Hi)
		n := overlapHi - overlapLo + 1
		bufOff := overlapLo - offset
		physOff := e.Physical.Lo + (overlapLo - e.Logical.Lo)

		var (
			f    backingfs.File
			path string
			err  error
		)

		if e.Tag == mapping.Critical {
			if crit == nil {
				if crit, err = fsys.Open(critPath); err != nil {
					return fmt.Errorf("streamio: open %s: %w", critPath, err)
				}
			}

			f, path = crit, critPath
		} else {
			if noncrit == nil {
				if noncrit, err = fsys.Open(noncritPath); err != nil {
					return fmt.Errorf("streamio: open %s: %w", noncritPath, err)
				}
			}

			f, path = noncrit, noncritPath
		}

		if _, err := f.Seek(int64(physOff), io.SeekStart); err != nil {
			return fmt.Errorf("streamio: seek %s: %w", path, err)
		}

		got, err := io.ReadFull(f, buf[bufOff:bufOff+n])
		if err != nil {
			return fmt.Errorf("%w: %s at %d: got %d want %d: %v", ErrShortRead, path, physOff, got, n, err)
		}
	}

	return nil
}
