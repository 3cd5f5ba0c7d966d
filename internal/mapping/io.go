package mapping

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/partfs/partfs/internal/backingfs"
)

// ErrMalformed is returned by [Decode] and [Load] when a line does not match
// the "<lo>-<hi> <lo>-<hi> <TAG>" grammar. It corresponds to the
// MAPPING_MALFORMED error kind of the filesystem gateway's error taxonomy.
var ErrMalformed = errors.New("mapping: malformed sidecar line")

// Encode renders t in the mapping sidecar's text format: one
// "<origLo>-<origHi> <mapLo>-<mapHi> <TAG>\n" line per entry, in ascending
// logical order, decimal integers, single hyphen and single space
// separators, trailing newline, no header.
func Encode(t *Table) []byte {
	var buf bytes.Buffer

	for _, e := range t.Iter() {
		fmt.Fprintf(&buf, "%d-%d %d-%d %s\n", e.Logical.Lo, e.Logical.Hi, e.Physical.Lo, e.Physical.Hi, e.Tag)
	}

	return buf.Bytes()
}

// Decode parses the mapping sidecar text format. Readers accept entries in
// any order but reject overlapping logical ranges via the same check
// [Table.Insert] applies on explicit inserts.
func Decode(data []byte) (*Table, error) {
	t := New()

	scanner := bufio.NewScanner(bytes.NewReader(data))

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if line == "" {
			continue
		}

		origLo, origHi, mapLo, mapHi, tag, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, lineNo, err)
		}

		if err := t.Insert(origLo, origHi, mapLo, mapHi, tag); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return t, nil
}

func parseLine(line string) (origLo, origHi, mapLo, mapHi uint64, tag StreamTag, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, 0, 0, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	origLo, origHi, err = parseSpan(fields[0])
	if err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("logical span %q: %w", fields[0], err)
	}

	mapLo, mapHi, err = parseSpan(fields[1])
	if err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("physical span %q: %w", fields[1], err)
	}

	switch fields[2] {
	case "CRITICAL_DATA":
		tag = Critical
	case "NON_CRITICAL_DATA":
		tag = NonCritical
	default:
		return 0, 0, 0, 0, 0, fmt.Errorf("unknown tag %q", fields[2])
	}

	return origLo, origHi, mapLo, mapHi, tag, nil
}

func parseSpan(s string) (lo, hi uint64, err error) {
	before, after, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("missing hyphen")
	}

	lo, err = strconv.ParseUint(before, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("lo: %w", err)
	}

	hi, err = strconv.ParseUint(after, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("hi: %w", err)
	}

	return lo, hi, nil
}

// Load reads and parses the mapping sidecar at path through fsys.
func Load(fsys backingfs.FS, path string) (*Table, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

// Save atomically (over)writes the mapping sidecar at path through fsys.
func Save(fsys backingfs.FS, path string, t *Table) error {
	return fsys.WriteFileAtomic(path, Encode(t), 0o644)
}
