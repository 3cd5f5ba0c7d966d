// Package corrupt implements the offline bit-corruption utility (spec.md §4
// item 3, §6): inverting bits across a byte range or a random percentage of
// byte positions, in 1 MiB windows so multi-gigabyte files stay off the
// single-allocation path.
package corrupt

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/partfs/partfs/internal/backingfs"
)

const windowSize = 1 << 20

// Report is the optional YAML summary emitted by --report on the percentage
// corruption mode, for reproducibility in resilience experiments.
type Report struct {
	File             string   `yaml:"file"`
	PercentRequested float64  `yaml:"percent_requested"`
	FlippedOffsets   []uint64 `yaml:"flipped_offsets"`
}

// InvertRange inverts every bit in the inclusive byte range [start, end] of
// the file at path, processed in windowSize windows.
func InvertRange(fsys backingfs.FS, path string, start, end uint64) error {
	if end < start {
		return fmt.Errorf("corrupt: range end %d before start %d", end, start)
	}

	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("corrupt: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, windowSize)

	for off := start; off <= end; off += windowSize {
		hi := off + windowSize - 1
		if hi > end {
			hi = end
		}

		n := int(hi - off + 1)

		if err := invertWindow(f, buf[:n], off); err != nil {
			return err
		}
	}

	return f.Sync()
}

// Sample reports which of the size byte positions of a file InvertPercent
// would select for percent% uniform random sampling, without mutating
// anything.
func Sample(size uint64, percent float64, rng *rand.Rand) []uint64 {
	if percent <= 0 || size == 0 {
		return nil
	}

	var offsets []uint64

	for i := uint64(0); i < size; i++ {
		if rng.Float64()*100 < percent {
			offsets = append(offsets, i)
		}
	}

	return offsets
}

// InvertPercent uniformly samples percent% of the byte positions across the
// whole file at path and inverts each sampled byte, processed in windowSize
// windows. Returns the ascending list of flipped offsets.
func InvertPercent(fsys backingfs.FS, path string, percent float64, rng *rand.Rand) ([]uint64, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("corrupt: stat %s: %w", path, err)
	}

	size := uint64(info.Size())

	offsets := Sample(size, percent, rng)
	if len(offsets) == 0 {
		return nil, nil
	}

	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("corrupt: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, windowSize)
	idx := 0

	for off := uint64(0); off < size && idx < len(offsets); off += windowSize {
		hi := off + windowSize
		if hi > size {
			hi = size
		}

		n := int(hi - off)

		windowStart := idx
		for idx < len(offsets) && offsets[idx] < hi {
			idx++
		}

		if idx == windowStart {
			continue
		}

		if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
			return nil, fmt.Errorf("corrupt: seek %d: %w", off, err)
		}

		if _, err := io.ReadFull(f, buf[:n]); err != nil {
			return nil, fmt.Errorf("corrupt: read window at %d: %w", off, err)
		}

		for _, o := range offsets[windowStart:idx] {
			buf[o-off] = ^buf[o-off]
		}

		if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
			return nil, fmt.Errorf("corrupt: seek %d: %w", off, err)
		}

		if _, err := f.Write(buf[:n]); err != nil {
			return nil, fmt.Errorf("corrupt: write window at %d: %w", off, err)
		}
	}

	return offsets, f.Sync()
}

func invertWindow(f backingfs.File, buf []byte, off uint64) error {
	if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
		return fmt.Errorf("corrupt: seek %d: %w", off, err)
	}

	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("corrupt: read window at %d: %w", off, err)
	}

	for i := range buf {
		buf[i] = ^buf[i]
	}

	if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
		return fmt.Errorf("corrupt: seek %d: %w", off, err)
	}

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("corrupt: write window at %d: %w", off, err)
	}

	return nil
}
