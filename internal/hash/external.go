package hash

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ambrevar/hsync/internal/herrors"
)

// External wraps an external hasher executable: a program taking one path
// argument and writing a single decimal unsigned integer to stdout, with a
// zero exit status on success (spec §4.1).
type External struct {
	Exec string
	// Width is what BitWidth reports (0 means 64). It is not part of
	// Kind() and is not stored in the database header, so a DB does not
	// detect a change of external hasher width.
	Width int
}

// NewExternal builds an External hasher for the given executable path.
func NewExternal(execPath string, width int) External {
	return External{Exec: execPath, Width: width}
}

func (e External) Kind() string  { return "external:" + e.Exec }
func (e External) BitWidth() int {
	if e.Width == 0 {
		return 64
	}
	return e.Width
}

// Sum exists only to satisfy the Hasher interface and always returns a
// HasherExecFailed error: an external hasher takes a path argument
// rather than a stream, so callers (the pipeline, check) detect External
// and call SumPath instead.
func (e External) Sum(r io.Reader) (uint64, error) {
	return 0, herrors.Wrap(herrors.HasherExecFailed, e.Exec, nil)
}

// SumPath runs the external hasher against path and parses its stdout.
func (e External) SumPath(ctx context.Context, path string) (uint64, error) {
	cmd := exec.CommandContext(ctx, e.Exec, path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, herrors.Wrap(herrors.HasherExecFailed, path, err)
	}

	text := strings.TrimSpace(out.String())
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, herrors.Wrap(herrors.HasherBadOutput, path, err)
	}
	return v, nil
}
