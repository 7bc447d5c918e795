package onlastonly

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

func TestOnlastonlyCmd(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	if err := os.WriteFile(filepath.Join(b, "only-b.txt"), []byte("lonely"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(a, "shared.txt"), []byte("shared"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(b, "shared.txt"), []byte("shared"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "onlastonly", a, b)
	if !strings.Contains(out, "only-b.txt") {
		t.Errorf("output = %q, want only-b.txt listed", out)
	}
	if strings.Contains(out, "shared.txt") {
		t.Errorf("output = %q, should not list content present in both", out)
	}
}
