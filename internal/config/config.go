// Package config loads partfs's daemon configuration from layered JSONC
// files, following the same defaults-then-overrides precedence the teacher
// uses for its own tool configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds everything partfsd needs to mount.
type Config struct {
	// Mountpoint is the directory the FUSE filesystem is mounted onto.
	Mountpoint string `json:"mountpoint"`

	// BackingDir is the real directory holding the artefacts the gateway
	// reads and writes.
	BackingDir string `json:"backing_dir"`

	// LogLevel is "quiet" or "debug". partfsd loads it but does not consult
	// it; dispatch tracing is switched on only by the --debug flag.
	LogLevel string `json:"log_level"`

	// LockTimeout bounds how long the merge-repartition pipeline waits to
	// acquire a per-path advisory lock, as a Go duration string (e.g. "2s").
	LockTimeout string `json:"lock_timeout"`
}

// Default returns the built-in configuration, used as the base of the
// precedence chain before any file or flag is applied.
func Default() Config {
	return Config{
		LogLevel:    "quiet",
		LockTimeout: "2s",
	}
}

// LockTimeoutDuration parses LockTimeout, falling back to 2s if empty or
// unparsable.
func (c Config) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}

	return d
}

// GlobalPath returns the path of the global config file under
// $XDG_CONFIG_HOME (or ~/.config if unset).
func GlobalPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, "partfs", "config.json")
}

// Load applies the precedence chain: [Default], then the global config file
// if present, then the project config file (".partfs.json" in projectDir) if
// present. Missing files are not errors; malformed ones are.
func Load(projectDir string) (Config, error) {
	cfg := Default()

	if err := mergeFile(&cfg, GlobalPath()); err != nil {
		return Config{}, fmt.Errorf("config: global: %w", err)
	}

	if err := mergeFile(&cfg, filepath.Join(projectDir, ".partfs.json")); err != nil {
		return Config{}, fmt.Errorf("config: project: %w", err)
	}

	return cfg, nil
}

// mergeFile JSONC-decodes path over cfg's existing fields. A present-but-zero
// field in the file is applied; fields the file omits are left as-is,
// because json.Unmarshal only overwrites struct fields it sees keys for.
func mergeFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}
