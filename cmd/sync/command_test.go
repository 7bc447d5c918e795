package sync

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ambrevar/hsync/cmd"
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

func TestSyncCmdDryRunByDefault(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "sync", source, target)
	if !strings.Contains(out, "dry run") {
		t.Errorf("output = %q, want dry run by default", out)
	}
}

func TestSyncCmdProcessFlag(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "sync", source, target, "-p")
	if !strings.Contains(out, "applied") {
		t.Errorf("output = %q, want applied with -p", out)
	}
}
