package cleandb

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

func TestCleandbCmd(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(victim, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	run(t, "update", dir)

	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}

	out := run(t, "cleandb", dir)
	if !strings.Contains(out, "pruned 1 dead entries") {
		t.Errorf("output = %q, want pruned count", out)
	}
}
