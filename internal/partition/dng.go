package partition

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/partfs/partfs/internal/mapping"
)

const (
	dngHeaderSize  = 8
	dngIFDEntrySize = 12
	dngMagic       = 42

	dngTagStripOffsets    = 0x0111
	dngTagStripByteCounts = 0x0117

	dngTypeShort = 3
	dngTypeLong  = 4
)

// dngMetadataTags are the DNG-specific metadata tags whose value/count pair
// is emitted as a critical block (spec.md §4.4.2 step 4).
var dngMetadataTags = map[uint16]bool{
	0xC621: true,
	0xC623: true,
	0xC628: true,
	0xC634: true,
}

// dngBlock is one critical or non-critical byte span discovered while
// walking the IFD.
type dngBlock struct {
	off, length uint64
	critical    bool
}

// dngPartitioner implements spec.md §4.4.2 (DNG/TIFF). Per the resolution
// recorded in DESIGN.md for the open question spec.md §9 raises, any byte
// range not covered by the header, IFD, metadata blocks, or strips is
// emitted as a catch-all CRITICAL block, so the mapping fully partitions
// the buffer like every other format instead of leaving a gap that reads
// back as zero.
type dngPartitioner struct{}

func (dngPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	if len(buf) == 0 {
		return t, nil
	}

	size := uint64(len(buf))

	if size < dngHeaderSize {
		return nil, fmt.Errorf("%w: dng: header too short", ErrInvalidFormat)
	}

	var order binary.ByteOrder

	switch {
	case buf[0] == 'I' && buf[1] == 'I':
		order = binary.LittleEndian
	case buf[0] == 'M' && buf[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: dng: bad byte-order marker", ErrInvalidFormat)
	}

	if order.Uint16(buf[2:4]) != dngMagic {
		return nil, fmt.Errorf("%w: dng: bad magic", ErrInvalidFormat)
	}

	ifdOff := uint64(order.Uint32(buf[4:8]))

	blocks := []dngBlock{{off: 0, length: dngHeaderSize, critical: true}}

	if ifdOff+2 > size {
		return nil, fmt.Errorf("%w: dng: IFD offset out of range", ErrInvalidFormat)
	}

	n := uint64(order.Uint16(buf[ifdOff : ifdOff+2]))
	ifdLen := 2 + dngIFDEntrySize*n + 4

	if ifdOff+ifdLen > size {
		return nil, fmt.Errorf("%w: dng: IFD runs past end of buffer", ErrInvalidFormat)
	}

	blocks = append(blocks, dngBlock{off: ifdOff, length: ifdLen, critical: true})

	var strips []dngBlock

	for i := uint64(0); i < n; i++ {
		entryOff := ifdOff + 2 + i*dngIFDEntrySize

		tag := order.Uint16(buf[entryOff : entryOff+2])
		typ := order.Uint16(buf[entryOff+2 : entryOff+4])
		count := uint64(order.Uint32(buf[entryOff+4 : entryOff+8]))
		value := uint64(order.Uint32(buf[entryOff+8 : entryOff+12]))

		switch {
		case tag == dngTagStripOffsets:
			offs, err := dngReadValues(buf, order, typ, count, value, entryOff+8)
			if err != nil {
				continue
			}

			for j, off := range offs {
				strips = dngSetStripField(strips, j, off, true)
			}
		case tag == dngTagStripByteCounts:
			lens, err := dngReadValues(buf, order, typ, count, value, entryOff+8)
			if err != nil {
				continue
			}

			for j, l := range lens {
				strips = dngSetStripField(strips, j, l, false)
			}
		case dngMetadataTags[tag]:
			elemSize := uint64(4)
			if typ == dngTypeShort {
				elemSize = 2
			}

			length := count * elemSize
			if value+length <= size {
				blocks = append(blocks, dngBlock{off: value, length: length, critical: true})
			}
		}
	}

	for _, s := range strips {
		if s.off+s.length <= size {
			blocks = append(blocks, dngBlock{off: s.off, length: s.length, critical: false})
		}
	}

	blocks = dngFillGaps(blocks, size)

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].off < blocks[j].off })

	var critOff, noncritOff uint64

	for _, b := range blocks {
		if b.length == 0 {
			continue
		}

		lo, hi := b.off, b.off+b.length-1

		if b.critical {
			if err := t.Insert(lo, hi, critOff, critOff+b.length-1, mapping.Critical); err != nil {
				return nil, err
			}

			critOff += b.length
		} else {
			if err := t.Insert(lo, hi, noncritOff, noncritOff+b.length-1, mapping.NonCritical); err != nil {
				return nil, err
			}

			noncritOff += b.length
		}
	}

	return t, nil
}

// dngReadValues decodes the count values for an IFD entry (u16 for SHORT,
// u32 otherwise): inlined in
// the value field itself when type SHORT with count<=2 or type LONG with
// count==1, otherwise read from an external array at the value offset.
func dngReadValues(buf []byte, order binary.ByteOrder, typ uint16, count, value, valueFieldOff uint64) ([]uint64, error) {
	inlineShort := typ == dngTypeShort && count <= 2
	inlineLong := typ == dngTypeLong && count == 1

	if inlineShort || inlineLong {
		return []uint64{value}, nil
	}

	elemSize := uint64(4)
	if typ == dngTypeShort {
		elemSize = 2
	}

	out := make([]uint64, 0, count)

	for i := uint64(0); i < count; i++ {
		off := value + i*elemSize
		if off+elemSize > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: dng: external value array out of range", ErrInvalidFormat)
		}

		if elemSize == 2 {
			out = append(out, uint64(order.Uint16(buf[off:off+2])))
		} else {
			out = append(out, uint64(order.Uint32(buf[off:off+4])))
		}
	}

	return out, nil
}

// dngSetStripField pairs strip offsets with strip byte-counts positionally,
// growing strips as needed.
func dngSetStripField(strips []dngBlock, idx int, v uint64, isOffset bool) []dngBlock {
	for len(strips) <= idx {
		strips = append(strips, dngBlock{})
	}

	if isOffset {
		strips[idx].off = v
	} else {
		strips[idx].length = v
	}

	return strips
}

// dngFillGaps emits a catch-all CRITICAL block for every byte range in
// [0, size) not covered by any block already discovered.
func dngFillGaps(blocks []dngBlock, size uint64) []dngBlock {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].off < blocks[j].off })

	var cursor uint64

	filled := make([]dngBlock, 0, len(blocks)+1)

	for _, b := range blocks {
		if b.length == 0 {
			continue
		}

		if b.off > cursor {
			filled = append(filled, dngBlock{off: cursor, length: b.off - cursor, critical: true})
		}

		end := b.off + b.length
		filled = append(filled, b)

		if end > cursor {
			cursor = end
		}
	}

	if cursor < size {
		filled = append(filled, dngBlock{off: cursor, length: size - cursor, critical: true})
	}

	return filled
}
