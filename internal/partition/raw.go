package partition

import "github.com/partfs/partfs/internal/mapping"

// rawHeaderSize is the coarse critical-prefix length for raw camera files
// (spec.md §4.4.6).
const rawHeaderSize = 1024

// rawPartitioner implements spec.md §4.4.6: a coarse partitioner treating the
// first min(1024, size) bytes as critical header/metadata and the remainder
// as non-critical sensor data.
type rawPartitioner struct{}

func (rawPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	size := uint64(len(buf))
	if size == 0 {
		return t, nil
	}

	headerLen := uint64(rawHeaderSize)
	if size < headerLen {
		headerLen = size
	}

	if err := t.Insert(0, headerLen-1, 0, headerLen-1, mapping.Critical); err != nil {
		return nil, err
	}

	if size > headerLen {
		if err := t.Insert(headerLen, size-1, 0, size-headerLen-1, mapping.NonCritical); err != nil {
			return nil, err
		}
	}

	return t, nil
}
