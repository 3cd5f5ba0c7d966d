package partition

import "github.com/partfs/partfs/internal/mapping"

// textSpanSize is the width of each alternating critical/non-critical span.
const textSpanSize = 5

// textPartitioner implements the generic text rule (spec.md §4.4.1): the
// buffer is split into alternating 5-byte spans, starting with CRITICAL,
// then NON_CRITICAL, repeating; the final span may be shorter than 5 bytes.
type textPartitioner struct{}

func (textPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	var origOff, critOff, noncritOff uint64

	tag := mapping.Critical

	size := uint64(len(buf))
	for origOff < size {
		spanLen := uint64(textSpanSize)
		if remaining := size - origOff; remaining < spanLen {
			spanLen = remaining
		}

		var mapLo uint64
		if tag == mapping.Critical {
			mapLo = critOff
			critOff += spanLen
		} else {
			mapLo = noncritOff
			noncritOff += spanLen
		}

		if err := t.Insert(origOff, origOff+spanLen-1, mapLo, mapLo+spanLen-1, tag); err != nil {
			return nil, err
		}

		origOff += spanLen

		if tag == mapping.Critical {
			tag = mapping.NonCritical
		} else {
			tag = mapping.Critical
		}
	}

	return t, nil
}
