package check

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ambrevar/hsync/cmd"
	_ "github.com/ambrevar/hsync/cmd/update"
	"github.com/ambrevar/hsync/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := cmd.GetRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCheckCmdNoBitrot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "update", dir); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "check", dir)
	if err != nil {
		t.Fatalf("check error = %v, output = %s", err, out)
	}
	if !strings.Contains(out, "no bitrot detected") {
		t.Errorf("output = %q, want no bitrot detected", out)
	}
}

func TestCheckCmdDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "update", dir); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	original := info.ModTime()

	// Flip a byte in place, same size, and restore the original mtime to
	// simulate bitrot: content diverges while size/mtime stay trusted.
	if err := os.WriteFile(p, []byte("hellO"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, original, original); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "check", dir)
	if err == nil {
		t.Fatal("expected an error reporting the mismatch")
	}
	if !strings.Contains(out, "mismatch") {
		t.Errorf("output = %q, want a.txt reported as a mismatch", out)
	}
}
