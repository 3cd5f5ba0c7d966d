// Package partition implements the format-specific rules that split a whole
// logical file buffer into critical and non-critical byte ranges, and the
// extension-keyed registry that selects a rule for a given logical path.
package partition

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/partfs/partfs/internal/mapping"
)

// ErrInvalidFormat is returned by a [Partitioner] when the buffer does not
// match the format it claims to be (bad signature, truncated header, or
// otherwise unparsable structure). It corresponds to the INVALID_ARG error
// kind of the filesystem gateway's error taxonomy.
var ErrInvalidFormat = errors.New("partition: invalid format")

// Partitioner decides, for one file format, which byte ranges of a complete
// logical buffer are critical and which are non-critical, producing a fresh
// mapping table. An empty buffer always yields an empty table and no error.
type Partitioner interface {
	// Partition walks buf once and returns the mapping table describing it.
	Partition(buf []byte) (*mapping.Table, error)
}

// registry maps a lowercased file extension (without the leading dot) to the
// partitioner bound to it.
var registry = map[string]Partitioner{
	"txt":  textPartitioner{},
	"dng":  dngPartitioner{},
	"tif":  dngPartitioner{},
	"tiff": dngPartitioner{},
	"png":  pngPartitioner{},
	"jpg":  jpegPartitioner{},
	"jpeg": jpegPartitioner{},
	"bmp":  bmpPartitioner{},
	"raw":  rawPartitioner{},
	"nef":  rawPartitioner{},
	"cr2":  rawPartitioner{},
	"arw":  rawPartitioner{},
}

// Dispatch returns the partitioner bound to path's extension, or nil if path
// is not a partitioned file (no extension, or an extension with no bound
// partitioner).
func Dispatch(path string) Partitioner {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	return registry[ext]
}
