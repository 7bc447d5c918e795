package subdir

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

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	root := cmd.GetRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute(%v) error = %v, output = %s", args, err, buf.String())
	}
	return buf.String()
}

func TestSubdirCmd(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "child")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "top.txt"), []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Establish the database at the tree root first.
	run(t, "update", root)

	out := run(t, "subdir", root, "child")
	if !strings.Contains(out, "scanned 1") {
		t.Errorf("output = %q, want scanned 1 (only the subtree)", out)
	}
}
