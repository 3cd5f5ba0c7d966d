package gateway

import (
	"fmt"
	"sync"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
	"github.com/partfs/partfs/internal/pipeline"
	"github.com/partfs/partfs/internal/streamio"
)

// partFile is the open-file handle for a partitioned logical file. Every
// Read and Write runs the full stream-I/O or merge-repartition path against
// the mapping sidecar; there is no cached file descriptor to speak of,
// mirroring the "no state persists across operations" lifecycle model.
type partFile struct {
	nodefs.File

	mu          sync.Mutex
	fsys        backingfs.FS
	partitioner partition.Partitioner
	mappingPath string
}

func newPartFile(fsys backingfs.FS, p partition.Partitioner, mappingPath string) nodefs.File {
	return &partFile{
		File:        nodefs.NewDefaultFile(),
		fsys:        fsys,
		partitioner: p,
		mappingPath: mappingPath,
	}
}

func (f *partFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := streamio.Read(f.fsys, f.mappingPath, dest, uint64(off)); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
	}

	return fuse.ReadResultData(dest), fuse.OK
}

func (f *partFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := pipeline.Write(f.fsys, f.partitioner, f.mappingPath, data, uint64(off))
	if err != nil {
		return 0, toStatus(err)
	}

	return uint32(n), fuse.OK
}

func (f *partFile) GetAttr(out *fuse.Attr) fuse.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	tbl, err := mapping.Load(f.fsys, f.mappingPath)
	if err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrMappingMalformed, err))
	}

	out.Mode = fuse.S_IFREG | 0644
	out.Size = tbl.Size()
	out.Nlink = 1

	return fuse.OK
}

func (f *partFile) Truncate(size uint64) fuse.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := pipeline.Truncate(f.fsys, f.partitioner, f.mappingPath, size); err != nil {
		return toStatus(err)
	}

	return fuse.OK
}

func (f *partFile) Flush() fuse.Status    { return fuse.OK }
func (f *partFile) Release()              {}
func (f *partFile) Fsync(int) fuse.Status { return fuse.OK }
func (f *partFile) String() string        { return "partFile(" + f.mappingPath + ")" }

var _ nodefs.File = (*partFile)(nil)
