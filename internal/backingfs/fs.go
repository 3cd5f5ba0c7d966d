// Package backingfs provides the narrow byte-stream interface over the
// backing directory that the core filesystem engine (mapping, partitioning,
// stream I/O, the merge-repartition pipeline) is built against. The gateway
// is the only caller that also needs raw directory semantics (mkdir, rmdir,
// readdir) beyond plain byte streams; this package still centralizes those so
// every filesystem access in partfs goes through one seam that can be
// fault-injected in tests.
package backingfs

import (
	"io"
	"os"
)

// File represents an open backing-directory file descriptor.
//
// Satisfied by [os.File]. All stdlib helpers that accept [io.Reader],
// [io.Writer], [io.Seeker] or [io.Closer] work against it directly.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Stat returns file info for the open file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the backing-directory operations the core engine and the
// filesystem gateway need.
//
// Implementations:
//   - [Real]: production use, wraps [os].
//   - [Chaos]: test use, injects I/O failures to exercise the pipeline's
//     locking and atomic-rename discipline.
//
// Paths use OS semantics (like [os] and [path/filepath]), not the
// slash-separated paths of the standard [io/fs] package.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with explicit flags and permissions. See
	// [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Create creates or truncates a file for reading and writing with the
	// given mode (before umask). See [os.Create].
	Create(path string, mode os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic durably replaces path's contents with data via a
	// temp-file-then-rename. Existing readers never observe a torn write.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns its entries, sorted by name. See
	// [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll]. No
	// error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// Mkdir creates a single directory. See [os.Mkdir].
	Mkdir(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists. Returns (false, nil) if absent,
	// (false, err) for other stat errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove]. Returns nil
	// if path does not exist.
	Remove(path string) error

	// Rename renames oldpath to newpath. See [os.Rename].
	Rename(oldpath, newpath string) error

	// Lock acquires an exclusive advisory lock scoped to path, blocking
	// until acquired or the implementation's timeout elapses.
	Lock(path string) (Locker, error)
}

// Locker represents a held advisory lock. Call [Locker.Close] to release it.
type Locker interface {
	io.Closer
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
