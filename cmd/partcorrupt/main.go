// Command partcorrupt is an offline bit-corruption tool for exercising
// partfs's resilience to damaged backing artefacts. It either inverts every
// bit in an inclusive byte range of a file, or uniformly samples a
// percentage of byte positions across the whole file and inverts each one.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/partfs/partfs/internal/backingfs"
	"github.com/partfs/partfs/internal/cli"
	"github.com/partfs/partfs/internal/corrupt"
)

func main() {
	flags := pflag.NewFlagSet("partcorrupt", pflag.ContinueOnError)
	percent := flags.Float64P("r", "r", 0, "corrupt this percentage of byte positions, uniformly at random")
	report := flags.Bool("report", false, "emit a YAML report of flipped offsets to stdout")
	seed := flags.Uint64("seed", 1, "RNG seed for -r sampling")

	cmd := &cli.Command{
		Flags: flags,
		Usage: "partcorrupt [-r <percent>] <file> [<start> <end>]",
		Short: "invert bits in a file to simulate storage corruption",
		Long: "Two modes: \"partcorrupt <file> <start> <end>\" inverts every bit in the " +
			"inclusive byte range, and \"partcorrupt -r <percent> <file>\" uniformly " +
			"samples that percentage of byte positions across the whole file and " +
			"inverts each sampled byte. Both process the file in 1 MiB windows.",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			return run(o, args, *percent, *report, *seed)
		},
	}

	os.Exit(cmd.Run(context.Background(), cli.NewIO(os.Stdout, os.Stderr), "partcorrupt", os.Args[1:]))
}

func run(o *cli.IO, args []string, percent float64, report bool, seed uint64) error {
	fsys := backingfs.NewReal()

	if percent > 0 {
		return runPercent(o, fsys, args, percent, report, seed)
	}

	return runRange(fsys, args)
}

func runPercent(o *cli.IO, fsys backingfs.FS, args []string, percent float64, report bool, seed uint64) error {
	if len(args) != 1 {
		return cli.Usagef("expected exactly one file argument with -r, got %d", len(args))
	}

	path := args[0]
	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))

	offsets, err := corrupt.InvertPercent(fsys, path, percent, rng)
	if err != nil {
		return err
	}

	if report {
		data, err := yaml.Marshal(corrupt.Report{
			File:             path,
			PercentRequested: percent,
			FlippedOffsets:   offsets,
		})
		if err != nil {
			return fmt.Errorf("partcorrupt: marshal report: %w", err)
		}

		o.Printf("%s", data)
	}

	return nil
}

func runRange(fsys backingfs.FS, args []string) error {
	if len(args) != 3 {
		return cli.Usagef("expected <file> <start> <end>, got %d arguments", len(args))
	}

	start, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return cli.Usagef("start: %v", err)
	}

	end, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return cli.Usagef("end: %v", err)
	}

	return corrupt.InvertRange(fsys, args[0], start, end)
}
