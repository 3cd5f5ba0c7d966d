package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/partfs/partfs/internal/mapping"
)

const (
	bmpMinHeaderSize   = 54 // 14-byte file header + 40-byte BITMAPINFOHEADER
	bmpFileHeaderSize  = 14
	bmpDIBHeaderSize   = 40
	bmpPixelOffOffset  = 10
	bmpWidthOffset     = 18
	bmpHeightOffset    = 22
	bmpBppOffset       = 28
	bmpRequiredBpp     = 24
	bmpRowAlign        = 4
	bmpBytesPerPixel24 = 3
)

// bmpPartitioner implements spec.md §4.4.5: the 54-byte file+DIB header and
// any inter-header gap up to the pixel data offset are critical; for each
// scan line, the unpadded pixel bytes are non-critical and the row's padding
// bytes (to a 4-byte boundary) are critical. Only uncompressed 24-bpp
// BITMAPINFOHEADER bitmaps are supported.
type bmpPartitioner struct{}

func (bmpPartitioner) Partition(buf []byte) (*mapping.Table, error) {
	t := mapping.New()

	if len(buf) == 0 {
		return t, nil
	}

	size := uint64(len(buf))

	if size < bmpMinHeaderSize || buf[0] != 'B' || buf[1] != 'M' {
		return nil, fmt.Errorf("%w: bmp: bad signature or short header", ErrInvalidFormat)
	}

	pixelDataOff := uint64(binary.LittleEndian.Uint32(buf[bmpPixelOffOffset : bmpPixelOffOffset+4]))
	width := int32(binary.LittleEndian.Uint32(buf[bmpWidthOffset : bmpWidthOffset+4]))
	height := int32(binary.LittleEndian.Uint32(buf[bmpHeightOffset : bmpHeightOffset+4]))
	bpp := binary.LittleEndian.Uint16(buf[bmpBppOffset : bmpBppOffset+2])

	if bpp != bmpRequiredBpp || width <= 0 || height == 0 || pixelDataOff > size {
		return nil, fmt.Errorf("%w: bmp: unsupported layout (bpp=%d width=%d height=%d)", ErrInvalidFormat, bpp, width, height)
	}

	var critOff, noncritOff uint64

	if err := t.Insert(0, bmpMinHeaderSize-1, critOff, critOff+bmpMinHeaderSize-1, mapping.Critical); err != nil {
		return nil, err
	}

	critOff += bmpMinHeaderSize
	origOff := uint64(bmpMinHeaderSize)

	if pixelDataOff > origOff {
		gapLen := pixelDataOff - origOff

		if err := t.Insert(origOff, pixelDataOff-1, critOff, critOff+gapLen-1, mapping.Critical); err != nil {
			return nil, err
		}

		critOff += gapLen
	}

	origOff = pixelDataOff

	rows := uint64(height)
	if height < 0 {
		rows = uint64(-height)
	}

	rowPix := uint64(width) * bmpBytesPerPixel24
	rowPad := ((rowPix + bmpRowAlign - 1) / bmpRowAlign) * bmpRowAlign

	for row := uint64(0); row < rows; row++ {
		if origOff+rowPix > size {
			return nil, fmt.Errorf("%w: bmp: pixel data runs past end of buffer", ErrInvalidFormat)
		}

		if err := t.Insert(origOff, origOff+rowPix-1, noncritOff, noncritOff+rowPix-1, mapping.NonCritical); err != nil {
			return nil, err
		}

		noncritOff += rowPix
		origOff += rowPix

		padLen := rowPad - rowPix
		if padLen == 0 {
			continue
		}

		if origOff+padLen > size {
			return nil, fmt.Errorf("%w: bmp: row padding runs past end of buffer", ErrInvalidFormat)
		}

		if err := t.Insert(origOff, origOff+padLen-1, critOff, critOff+padLen-1, mapping.Critical); err != nil {
			return nil, err
		}

		critOff += padLen
		origOff += padLen
	}

	return t, nil
}
