package cmdutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/pipeline"
	"github.com/ambrevar/hsync/internal/treeview"
)

func hashOnline(t *testing.T, tr *Tree) error {
	t.Helper()
	online, ok := tr.View.(*treeview.OnlineView)
	if !ok {
		t.Fatal("expected an online view")
	}
	_, err := pipeline.Run(context.Background(), online, tr.DB, config.Default(), false)
	return err
}

// snapshotOffline mirrors what cmd/mkoffline does: copy every entry and
// its path set from an online tree into a fresh offline database.
func snapshotOffline(tr *Tree, outPath string) error {
	entries, err := tr.View.Entries()
	if err != nil {
		return err
	}
	out, err := hashdb.Open(outPath, config.Default().HasherKind, hashdb.KindOnline)
	if err != nil {
		return err
	}
	paths := make(map[fileid.FileID][]string)
	for i, e := range entries {
		id := fileid.Synthetic(uint64(i + 1))
		if err := out.Upsert(id, e.Size, e.Mtime, e.Hash); err != nil {
			_ = out.Close()
			return err
		}
		paths[id] = e.Paths
	}
	if err := out.ToOffline(paths); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func idZero() fileid.FileID { return fileid.FileID{} }

func entryWithPaths(paths ...string) treeview.Entry {
	return treeview.Entry{ID: fileid.Synthetic(1), Size: 1, Hash: 1, HashValid: true, Paths: paths}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigFromFlags(t *testing.T) {
	c := &cobra.Command{}
	RegisterGlobalFlags(c)
	if err := c.Flags().Set("exclude", "*.tmp"); err != nil {
		t.Fatal(err)
	}
	if err := c.Flags().Set("size-only", "true"); err != nil {
		t.Fatal(err)
	}
	if err := c.Flags().Set("all-links", "true"); err != nil {
		t.Fatal(err)
	}

	cfg, err := ConfigFromFlags(c)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.SizeOnly {
		t.Error("SizeOnly should be true")
	}
	if cfg.LinkMode != "all-links" {
		t.Errorf("LinkMode = %q, want all-links", cfg.LinkMode)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Pattern != "*.tmp" || !cfg.Rules[0].Exclude {
		t.Errorf("Rules = %+v, want one exclude rule for *.tmp", cfg.Rules)
	}
}

func TestOpenLocationOnlineCreatesDatabase(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")

	cfg := config.Default()
	tree, err := OpenLocation(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	entries, err := tree.View.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Entries() = %d, want 1", len(entries))
	}
}

func TestOpenLocationOffline(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")

	cfg := config.Default()
	online, err := OpenLocation(root, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := hashOnline(t, online); err != nil {
		t.Fatal(err)
	}

	offlinePath := filepath.Join(t.TempDir(), "snapshot.db")
	if err := snapshotOffline(online, offlinePath); err != nil {
		t.Fatal(err)
	}
	online.Close()

	offline, err := OpenLocation(offlinePath, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer offline.Close()

	entries, err := offline.View.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("offline Entries() = %d, want 1", len(entries))
	}
}

func TestFileIDOf(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	mustWrite(t, p, "hello")

	id, info, err := FileIDOf(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}
	if id == (idZero()) {
		t.Error("FileIDOf returned the zero file-id")
	}
}

func TestOutputPaths(t *testing.T) {
	e := entryWithPaths("b.txt", "a.txt")
	if got := OutputPaths(e, "file"); len(got) != 1 || got[0] != "a.txt" {
		t.Errorf("file mode = %v, want [a.txt]", got)
	}
	if got := OutputPaths(e, "links"); len(got) != 2 {
		t.Errorf("links mode = %v, want 2 paths", got)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(1024); got == "" {
		t.Error("FormatBytes should not be empty")
	}
}
