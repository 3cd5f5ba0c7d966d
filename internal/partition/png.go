package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/partfs/partfs/internal/mapping"
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	pngChunkLengthSize = 4
	pngChunkTypeSize   = 4
	pngChunkCRCSize    = 4
	pngChunkHeaderSize = pngChunkLengthSize + pngChunkTypeSize
	pngIDATType        = "IDAT"
)

// pngPartitioner implements spec.md §4.4.3: the 8-byte signature and every
// chunk's 8-byte header and 4-byte CRC are critical; only IDAT payloads are
// non-critical, everything else (IHDR, PLTE, IEND, ancillary chunks) is
// critical.
type pngPartitioner struct{}

func (pngPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	if len(buf) == 0 {
		return t, nil
	}

	if len(buf) < len(pngSignature) || [8]byte(buf[:8]) != pngSignature {
		return nil, fmt.Errorf("%w: png: bad signature", ErrInvalidFormat)
	}

	var origOff, critOff, noncritOff uint64

	if err := t.Insert(0, uint64(len(pngSignature)-1), critOff, critOff+uint64(len(pngSignature)-1), mapping.Critical); err != nil {
		return nil, err
	}

	critOff += uint64(len(pngSignature))
	origOff = uint64(len(pngSignature))

	size := uint64(len(buf))

	for origOff+12 <= size {
		length := uint64(binary.BigEndian.Uint32(buf[origOff : origOff+4]))
		chunkType := string(buf[origOff+4 : origOff+8])

		if origOff+12+length > size {
			break
		}

		headerLo := origOff
		headerHi := origOff + pngChunkHeaderSize - 1

		if err := t.Insert(headerLo, headerHi, critOff, critOff+pngChunkHeaderSize-1, mapping.Critical); err != nil {
			return nil, err
		}

		critOff += pngChunkHeaderSize
		origOff += pngChunkHeaderSize

		if length > 0 {
			payloadLo := origOff
			payloadHi := origOff + length - 1

			if chunkType == pngIDATType {
				if err := t.Insert(payloadLo, payloadHi, noncritOff, noncritOff+length-1, mapping.NonCritical); err != nil {
					return nil, err
				}

				noncritOff += length
			} else {
				if err := t.Insert(payloadLo, payloadHi, critOff, critOff+length-1, mapping.Critical); err != nil {
					return nil, err
				}

				critOff += length
			}

			origOff += length
		}

		crcLo := origOff
		crcHi := origOff + pngChunkCRCSize - 1

		if err := t.Insert(crcLo, crcHi, critOff, critOff+pngChunkCRCSize-1, mapping.Critical); err != nil {
			return nil, err
		}

		critOff += pngChunkCRCSize
		origOff += pngChunkCRCSize
	}

	return t, nil
}
