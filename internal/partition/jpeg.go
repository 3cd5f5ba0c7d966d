package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/partfs/partfs/internal/mapping"
)

const (
	jpegMarkerPrefix = 0xFF
	jpegMarkerSOI    = 0xD8
	jpegMarkerEOI    = 0xD9
	jpegMarkerSOS    = 0xDA
)

// jpegPartitioner implements spec.md §4.4.4: the SOI/EOI markers and every
// non-scan segment (marker + its length-prefixed payload, (L+2) bytes total)
// are critical; the entropy-coded scan data following an SOS segment is
// non-critical, up to but not including the next real marker (a literal
// 0xFF00 stuffing byte inside scan data is not a marker boundary).
type jpegPartitioner struct{}

func (jpegPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	if len(buf) == 0 {
		return t, nil
	}

	size := uint64(len(buf))

	if size < 2 || buf[0] != jpegMarkerPrefix || buf[1] != jpegMarkerSOI {
		return nil, fmt.Errorf("%w: jpeg: bad signature", ErrInvalidFormat)
	}

	var origOff, critOff, noncritOff uint64

	if err := t.Insert(0, 1, 0, 1, mapping.Critical); err != nil {
		return nil, err
	}

	critOff = 2
	origOff = 2

	for origOff < size {
		if origOff+1 >= size || buf[origOff] != jpegMarkerPrefix {
			return nil, fmt.Errorf("%w: jpeg: expected marker at offset %d", ErrInvalidFormat, origOff)
		}

		marker := buf[origOff+1]
		markerStart := origOff

		if marker == jpegMarkerEOI {
			if err := t.Insert(markerStart, markerStart+1, critOff, critOff+1, mapping.Critical); err != nil {
				return nil, err
			}

			critOff += 2
			origOff += 2

			break
		}

		if origOff+4 > size {
			return nil, fmt.Errorf("%w: jpeg: truncated segment length at offset %d", ErrInvalidFormat, origOff)
		}

		segLen := uint64(binary.BigEndian.Uint16(buf[origOff+2 : origOff+4]))

		segHi := markerStart + 1 + segLen
		if segHi >= size {
			return nil, fmt.Errorf("%w: jpeg: segment runs past end of buffer", ErrInvalidFormat)
		}

		segSpan := segHi - markerStart + 1

		if err := t.Insert(markerStart, segHi, critOff, critOff+segSpan-1, mapping.Critical); err != nil {
			return nil, err
		}

		critOff += segSpan
		origOff = segHi + 1

		if marker != jpegMarkerSOS {
			continue
		}

		scanStart := origOff
		i := origOff

		for i+1 < size {
			if buf[i] == jpegMarkerPrefix && buf[i+1] != 0x00 {
				break
			}

			i++
		}

		scanHi := i - 1
		if scanHi >= scanStart {
			scanLen := scanHi - scanStart + 1

			if err := t.Insert(scanStart, scanHi, noncritOff, noncritOff+scanLen-1, mapping.NonCritical); err != nil {
				return nil, err
			}

			noncritOff += scanLen
		}

		origOff = i
	}

	return t, nil
}
