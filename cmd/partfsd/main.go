// Command partfsd mounts a partfs filesystem: logical files whose extension
// a partitioner binds to are transparently split into critical and
// non-critical physical streams on write and reassembled on read; everything
// else passes through to the backing directory untouched.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	flag "github.com/spf13/pflag"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/cli"
	"github.com/partfs/partfs/internal/config"
	"github.com/partfs/partfs/internal/gateway"
)

func main() {
	flags := flag.NewFlagSet("partfsd", flag.ContinueOnError)
	mountFlag := flags.String("mount", "", "mount point (overrides config)")
	backingFlag := flags.String("backing-dir", "", "backing directory (overrides config)")
	projectDir := flags.String("project-dir", ".", "directory to look for .partfs.json in")
	debug := flags.Bool("debug", false, "trace every dispatched filesystem operation to stderr")

	cmd := &cli.Command{
		Flags: flags,
		Usage: "partfsd [flags]",
		Short: "mount a partfs filesystem",
		Long: "partfsd mounts a FUSE filesystem backed by a plain directory, " +
			"transparently partitioning files whose extension is recognised " +
			"(text, DNG/TIFF, PNG, JPEG, BMP, raw camera formats) into a " +
			"critical and a non-critical physical stream.",
		Exec: func(_ context.Context, o *cli.IO, _ []string) error {
			return run(o, *projectDir, *mountFlag, *backingFlag, *debug)
		},
	}

	os.Exit(cmd.Run(context.Background(), cli.NewIO(os.Stdout, os.Stderr), "partfsd", os.Args[1:]))
}

func run(o *cli.IO, projectDir, mountOverride, backingOverride string, debug bool) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return fmt.Errorf("partfsd: %w", err)
	}

	if mountOverride != "" {
		cfg.Mountpoint = mountOverride
	}

	if backingOverride != "" {
		cfg.BackingDir = backingOverride
	}

	if cfg.Mountpoint == "" || cfg.BackingDir == "" {
		return cli.Usagef("both a mount point and a backing directory are required (config or --mount/--backing-dir)")
	}

	if err := os.MkdirAll(cfg.BackingDir, 0755); err != nil {
		return fmt.Errorf("partfsd: create backing dir: %w", err)
	}

	real := backingfs.NewReal()
	real.LockTimeout = cfg.LockTimeoutDuration()

	gw := gateway.New(cfg.BackingDir, real, debug)

	nodeFs := pathfs.NewPathNodeFs(gw, nil)

	server, _, err := nodefs.MountRoot(cfg.Mountpoint, nodeFs.Root(), nil)
	if err != nil {
		return fmt.Errorf("partfsd: mount %s: %w", cfg.Mountpoint, err)
	}

	o.Printf("partfs mounted on %s (backing %s)\n", cfg.Mountpoint, cfg.BackingDir)

	server.Serve()

	return nil
}
