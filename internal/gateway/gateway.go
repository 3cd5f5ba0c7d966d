// Package gateway implements the filesystem surface partfs exposes over
// FUSE: it decides, per path, whether to route through the partitioning core
// (mapping/partition/streamio/pipeline) or pass the operation straight
// through to the backing directory.
package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/mapping"
	"github.com/partfs/partfs/internal/partition"
	"github.com/partfs/partfs/internal/pipeline"
	"github.com/partfs/partfs/internal/streamio"
)

const (
	mappingSuffix = ".mapping"
	critSuffix    = ".crit"
	noncritSuffix = ".noncrit"
)

// Gateway is a pathfs.FileSystem that transparently partitions files whose
// extension a partitioner binds to, and passes everything else straight
// through to the backing directory.
type Gateway struct {
	pathfs.FileSystem

	backingDir string
	fsys       backingfs.FS
	debug      bool
}

// New returns a Gateway rooted at backingDir, performing all backing I/O
// through fsys. When debug is set, every dispatched operation is traced to
// stderr.
func New(backingDir string, fsys backingfs.FS, debug bool) *Gateway {
	return &Gateway{
		FileSystem: pathfs.NewDefaultFileSystem(),
		backingDir: backingDir,
		fsys:       fsys,
		debug:      debug,
	}
}

func (g *Gateway) real(name string) string {
	return filepath.Join(g.backingDir, name)
}

func (g *Gateway) mappingPath(name string) string {
	return g.real(name) + mappingSuffix
}

func (g *Gateway) trace(op, name string) {
	if g.debug {
		fmt.Fprintf(os.Stderr, "partfs: %s %s\n", op, name)
	}
}

// unsupported reports whether name has no bound partitioner but a .mapping
// sidecar exists for it anyway, per spec.md §7's UNSUPPORTED error kind. ok
// is true only when the caller should return status immediately.
func (g *Gateway) unsupported(name string) (status fuse.Status, ok bool) {
	exists, err := g.fsys.Exists(g.mappingPath(name))
	if err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err)), true
	}

	if exists {
		return toStatus(ErrUnsupported), true
	}

	return fuse.OK, false
}

func attrFromInfo(info os.FileInfo) *fuse.Attr {
	mode := uint32(info.Mode().Perm())
	if info.IsDir() {
		mode |= fuse.S_IFDIR
	} else {
		mode |= fuse.S_IFREG
	}

	return &fuse.Attr{
		Mode:  mode,
		Size:  uint64(info.Size()),
		Nlink: 1,
	}
}

// GetAttr implements spec.md §4.7: a partitioned logical file reports its
// mapping-derived size; everything else falls through to the backing stat.
func (g *Gateway) GetAttr(name string, _ *fuse.Context) (*fuse.Attr, fuse.Status) {
	g.trace("getattr", name)

	if name == "" {
		return &fuse.Attr{Mode: fuse.S_IFDIR | 0755, Nlink: 1}, fuse.OK
	}

	if p := partition.Dispatch(name); p != nil {
		mp := g.mappingPath(name)

		exists, err := g.fsys.Exists(mp)
		if err != nil {
			return nil, toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
		}

		if exists {
			tbl, err := mapping.Load(g.fsys, mp)
			if err != nil {
				return nil, toStatus(fmt.Errorf("%w: %w", ErrMappingMalformed, err))
			}

			return &fuse.Attr{Mode: fuse.S_IFREG | 0644, Size: tbl.Size(), Nlink: 1}, fuse.OK
		}
	} else if status, bad := g.unsupported(name); bad {
		return nil, status
	}

	info, err := g.fsys.Stat(g.real(name))
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	return attrFromInfo(info), fuse.OK
}

// OpenDir implements the hide invariant: no name ending in .mapping, .crit,
// or .noncrit is ever yielded, and each .mapping entry is yielded once,
// stemmed to its logical name.
func (g *Gateway) OpenDir(name string, _ *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	g.trace("readdir", name)

	entries, err := g.fsys.ReadDir(g.real(name))
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	seen := make(map[string]bool, len(entries))

	out := make([]fuse.DirEntry, 0, len(entries))

	for _, e := range entries {
		n := e.Name()

		switch {
		case strings.HasSuffix(n, critSuffix), strings.HasSuffix(n, noncritSuffix):
			continue
		case strings.HasSuffix(n, mappingSuffix):
			n = strings.TrimSuffix(n, mappingSuffix)
		}

		if seen[n] {
			continue
		}

		seen[n] = true

		mode := uint32(fuse.S_IFREG)
		if e.IsDir() {
			mode = fuse.S_IFDIR
		}

		out = append(out, fuse.DirEntry{Name: n, Mode: mode})
	}

	return out, fuse.OK
}

// Open services read (and read/write handle acquisition); the returned
// nodefs.File routes Read/Write through the partitioning core when a
// partitioner is bound and the mapping sidecar exists, otherwise it wraps
// the backing file directly.
func (g *Gateway) Open(name string, flags uint32, _ *fuse.Context) (nodefs.File, fuse.Status) {
	g.trace("open", name)

	if p := partition.Dispatch(name); p != nil {
		mp := g.mappingPath(name)

		exists, err := g.fsys.Exists(mp)
		if err != nil {
			return nil, toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
		}

		if exists {
			return newPartFile(g.fsys, p, mp), fuse.OK
		}
	} else if status, bad := g.unsupported(name); bad {
		return nil, status
	}

	f, err := g.fsys.OpenFile(g.real(name), int(flags), 0644)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	return wrapLoopback(f)
}

// Create implements spec.md §4.7: a partitioned file gets an empty mapping
// sidecar (its .crit/.noncrit appear on first write); anything else is
// created directly in the backing directory.
func (g *Gateway) Create(name string, _ uint32, mode uint32, _ *fuse.Context) (nodefs.File, fuse.Status) {
	g.trace("create", name)

	if p := partition.Dispatch(name); p != nil {
		mp := g.mappingPath(name)

		if err := pipeline.Create(g.fsys, mp); err != nil {
			return nil, toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
		}

		return newPartFile(g.fsys, p, mp), fuse.OK
	} else if status, bad := g.unsupported(name); bad {
		return nil, status
	}

	f, err := g.fsys.Create(g.real(name), os.FileMode(mode))
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
	}

	return wrapLoopback(f)
}

// wrapLoopback adapts a backingfs.File into a nodefs.File. nodefs.NewLoopbackFile
// needs the concrete *os.File, which [backingfs.Real] always returns; the
// fault-injecting [backingfs.Chaos] wrapper is test-only and is never wired
// under a live mount.
func wrapLoopback(f backingfs.File) (nodefs.File, fuse.Status) {
	osFile, ok := f.(*os.File)
	if !ok {
		return nil, fuse.EIO
	}

	return nodefs.NewLoopbackFile(osFile), fuse.OK
}

// Unlink implements spec.md §4.7: removes all three sidecars for a
// partitioned file (missing ones ignored), or the backing file directly.
func (g *Gateway) Unlink(name string, _ *fuse.Context) fuse.Status {
	g.trace("unlink", name)

	if p := partition.Dispatch(name); p != nil {
		mp := g.mappingPath(name)

		exists, err := g.fsys.Exists(mp)
		if err != nil {
			return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
		}

		if exists {
			critPath, noncritPath := streamio.StreamPaths(mp)
			for _, path := range []string{mp, critPath, noncritPath} {
				if err := g.fsys.Remove(path); err != nil {
					return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
				}
			}

			return fuse.OK
		}
	} else if status, bad := g.unsupported(name); bad {
		return status
	}

	if err := g.fsys.Remove(g.real(name)); err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	return fuse.OK
}

// Mkdir and Rmdir pass straight through; directories are never partitioned.
func (g *Gateway) Mkdir(name string, mode uint32, _ *fuse.Context) fuse.Status {
	g.trace("mkdir", name)

	if err := g.fsys.Mkdir(g.real(name), os.FileMode(mode)); err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
	}

	return fuse.OK
}

func (g *Gateway) Rmdir(name string, _ *fuse.Context) fuse.Status {
	g.trace("rmdir", name)

	if err := g.fsys.Remove(g.real(name)); err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	return fuse.OK
}

// Rename implements spec.md §4.7: each of the three sidecar artefacts is
// renamed independently, per-artefact NOT_FOUND ignored, then the backing
// path itself is renamed. pathfs.FileSystem.Rename carries no rename(2) flag
// bits, so there is nothing here for the "reject non-zero rename flags"
// clause to reject; it applies at a lower API level than pathfs exposes.
func (g *Gateway) Rename(oldName, newName string, _ *fuse.Context) fuse.Status {
	g.trace("rename", oldName+" -> "+newName)

	p := partition.Dispatch(oldName)

	if p != nil {
		oldMp := g.mappingPath(oldName)
		newMp := g.mappingPath(newName)
		oldCrit, oldNoncrit := streamio.StreamPaths(oldMp)
		newCrit, newNoncrit := streamio.StreamPaths(newMp)

		artefacts := [][2]string{{oldMp, newMp}, {oldCrit, newCrit}, {oldNoncrit, newNoncrit}}

		for _, pair := range artefacts {
			exists, err := g.fsys.Exists(pair[0])
			if err != nil {
				return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
			}

			if !exists {
				continue
			}

			if err := g.fsys.Rename(pair[0], pair[1]); err != nil {
				return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
			}
		}
	} else if status, bad := g.unsupported(oldName); bad {
		return status
	}

	err := g.fsys.Rename(g.real(oldName), g.real(newName))
	if err != nil && !(p != nil && os.IsNotExist(err)) {
		return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
	}

	return fuse.OK
}

// Truncate is not required by spec.md §6 but is serviced, as permitted,
// by repartitioning over a zero-extended or tail-clipped reconstruction.
func (g *Gateway) Truncate(name string, size uint64, _ *fuse.Context) fuse.Status {
	g.trace("truncate", name)

	if p := partition.Dispatch(name); p != nil {
		mp := g.mappingPath(name)
		if err := pipeline.Truncate(g.fsys, p, mp, size); err != nil {
			return toStatus(err)
		}

		return fuse.OK
	} else if status, bad := g.unsupported(name); bad {
		return status
	}

	f, err := g.fsys.OpenFile(g.real(name), os.O_WRONLY, 0)
	if err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrNotFound, err))
	}
	defer f.Close()

	osFile, ok := f.(*os.File)
	if !ok {
		return fuse.EIO
	}

	if err := osFile.Truncate(int64(size)); err != nil {
		return toStatus(fmt.Errorf("%w: %w", ErrIOFail, err))
	}

	return fuse.OK
}

// compile-time interface check.
var _ pathfs.FileSystem = (*Gateway)(nil)
