package backingfs

import (
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"sync"
)

// ChaosConfig controls fault-injection probabilities. Each rate is a
// float64 in [0.0, 1.0]; the zero value disables all injection.
//
// Modeled on the teacher's richer pkg/fs.ChaosConfig, trimmed to the fault
// classes the merge-repartition pipeline's locking and atomic-rename
// discipline actually needs to be exercised against (partfs has no File.Chmod
// or RemoveAll surface to inject into).
type ChaosConfig struct {
	// ReadFailRate controls how often File.Read fails with EIO.
	ReadFailRate float64

	// WriteFailRate controls how often File.Write fails entirely with EIO.
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes fewer bytes than
	// requested without an error (a valid, if unusual, io.Writer response
	// callers must loop on).
	PartialWriteRate float64

	// RenameFailRate controls how often FS.Rename fails with EIO, simulating
	// the window in which [FS.WriteFileAtomic]'s rename step can fail after
	// the temp file has already been written and synced.
	RenameFailRate float64

	// OpenFailRate controls how often Open/OpenFile/Create fail with EIO.
	OpenFailRate float64
}

// Chaos wraps an [FS] and injects faults per [ChaosConfig] into Open,
// OpenFile, Create, ReadFile, WriteFileAtomic, Rename and the Read/Write
// calls of the files it opens; ReadDir, MkdirAll, Mkdir, Stat, Exists,
// Remove and Lock pass straight through. Safe for concurrent use.
type Chaos struct {
	fs   FS
	mu   sync.Mutex
	cfg  ChaosConfig
	rng  *rand.Rand
	disc bool // when true, pass every call straight through
}

// NewChaos wraps fs, injecting faults per cfg. seed seeds the fault-selection
// RNG; pass a fixed seed for reproducible test failures.
func NewChaos(fs FS, cfg ChaosConfig, seed uint64) *Chaos {
	return &Chaos{
		fs:  fs,
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Disable turns off fault injection; every call passes through to the
// wrapped FS. Re-enable with [Chaos.Enable].
func (c *Chaos) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disc = true
}

// Enable turns fault injection back on.
func (c *Chaos) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disc = false
}

func (c *Chaos) roll(rate float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disc || rate <= 0 {
		return false
	}

	return c.rng.Float64() < rate
}

func (c *Chaos) Open(path string) (File, error) {
	if c.roll(c.cfg.OpenFailRate) {
		return nil, &os.PathError{Op: "open", Path: path, Err: errIO}
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.roll(c.cfg.OpenFailRate) {
		return nil, &os.PathError{Op: "openfile", Path: path, Err: errIO}
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) Create(path string, mode os.FileMode) (File, error) {
	if c.roll(c.cfg.OpenFailRate) {
		return nil, &os.PathError{Op: "create", Path: path, Err: errIO}
	}

	f, err := c.fs.Create(path, mode)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.roll(c.cfg.ReadFailRate) {
		return nil, &os.PathError{Op: "read", Path: path, Err: errIO}
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if c.roll(c.cfg.WriteFailRate) {
		return &os.PathError{Op: "write", Path: path, Err: errIO}
	}

	if c.roll(c.cfg.RenameFailRate) {
		return &os.LinkError{Op: "rename", Old: path + ".tmp", New: path, Err: errIO}
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) { return c.fs.ReadDir(path) }

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error { return c.fs.MkdirAll(path, perm) }

func (c *Chaos) Mkdir(path string, perm os.FileMode) error { return c.fs.Mkdir(path, perm) }

func (c *Chaos) Stat(path string) (os.FileInfo, error) { return c.fs.Stat(path) }

func (c *Chaos) Exists(path string) (bool, error) { return c.fs.Exists(path) }

func (c *Chaos) Remove(path string) error { return c.fs.Remove(path) }

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.roll(c.cfg.RenameFailRate) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errIO}
	}

	return c.fs.Rename(oldpath, newpath)
}

func (c *Chaos) Lock(path string) (Locker, error) { return c.fs.Lock(path) }

var errIO = errors.New("chaos: injected I/O failure")

// chaosFile wraps an open [File], injecting read/write faults per the parent
// [Chaos]'s config.
type chaosFile struct {
	File
	c *Chaos
}

func (f *chaosFile) Read(p []byte) (int, error) {
	if f.c.roll(f.c.cfg.ReadFailRate) {
		return 0, errIO
	}

	return f.File.Read(p)
}

func (f *chaosFile) Write(p []byte) (int, error) {
	if f.c.roll(f.c.cfg.WriteFailRate) {
		return 0, errIO
	}

	if f.c.roll(f.c.cfg.PartialWriteRate) && len(p) > 1 {
		n, err := f.File.Write(p[:len(p)/2])
		if err != nil {
			return n, err
		}

		return n, nil
	}

	return f.File.Write(p)
}

// Compile-time interface checks.
var (
	_ FS            = (*Chaos)(nil)
	_ File          = (*chaosFile)(nil)
	_ io.ReadWriter = (*chaosFile)(nil)
)
