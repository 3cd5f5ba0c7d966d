package gateway

import (
	"errors"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
)

// Error kinds, the taxonomy the gateway translates into fuse.Status at its
// boundary.
var (
	// ErrNotFound signals a missing backing entry.
	ErrNotFound = errors.New("gateway: not found")

	// ErrInvalidArg is the invalid-argument kind, surfaced as EINVAL. A
	// partitioner rejecting a buffer (partition.ErrInvalidFormat) maps to the
	// same status; a malformed mapping sidecar maps to EIO instead.
	ErrInvalidArg = errors.New("gateway: invalid argument")

	// ErrIOFail signals a short or failed backing read/write.
	ErrIOFail = errors.New("gateway: I/O failure")

	// ErrMappingMalformed signals a sidecar parse failure.
	ErrMappingMalformed = errors.New("gateway: malformed mapping sidecar")

	// ErrUnsupported signals a logical file with a .mapping sidecar but no
	// bound partitioner, an on-disk inconsistency.
	ErrUnsupported = errors.New("gateway: unsupported (mapping present, no partitioner bound)")
)

// toStatus maps an error produced anywhere in the gateway's call graph to the
// fuse.Status it should be surfaced as, per the error taxonomy.
func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}

	switch {
	case errors.Is(err, ErrNotFound), os.IsNotExist(err):
		return fuse.ENOENT
	case errors.Is(err, ErrInvalidArg), errors.Is(err, partition.ErrInvalidFormat):
		return fuse.EINVAL
	case errors.Is(err, ErrMappingMalformed), errors.Is(err, mapping.ErrMalformed):
		return fuse.EIO
	case errors.Is(err, ErrUnsupported):
		return fuse.EIO
	case errors.Is(err, ErrIOFail):
		return fuse.EIO
	default:
		return fuse.EIO
	}
}
