package treeview

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/filter"
	"github.com/ambrevar/hsync/internal/hashdb"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOnlineViewEntries(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	mustWrite(t, filepath.Join(root, "sub", "b.txt"), "world")
	if err := os.Link(filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "a-link.txt")); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(root, "hsync-1.db")
	db, err := hashdb.Open(dbPath, "xxhash64", hashdb.KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	v := NewOnline(root, db, filter.NoOp(), config.Default())
	entries, err := v.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d entries, want 2 (a.txt+link, sub/b.txt)", len(entries))
	}

	var linked, single *Entry
	for i := range entries {
		e := &entries[i]
		if len(e.Paths) == 2 {
			linked = e
		} else {
			single = e
		}
	}
	if linked == nil {
		t.Fatal("expected one entry with two aliased paths")
	}
	sp := linked.SortedPaths()
	if sp[0] != "a.txt" || sp[1] != "sub/a-link.txt" {
		t.Errorf("SortedPaths() = %v", sp)
	}
	if linked.MinPath() != "a.txt" {
		t.Errorf("MinPath() = %q, want a.txt", linked.MinPath())
	}
	if single == nil || single.Size != 5 {
		t.Errorf("single entry = %+v", single)
	}

	if db.Path() != dbPath {
		t.Fatalf("db path mismatch")
	}
	_ = fileid.FileID{}
}

func TestOnlineViewSkipsDatabaseFile(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "data.bin"), "payload")

	dbPath := filepath.Join(root, "hsync-2.db")
	db, err := hashdb.Open(dbPath, "xxhash64", hashdb.KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	v := NewOnline(root, db, filter.NoOp(), config.Default())
	entries, err := v.Entries()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		for _, p := range e.Paths {
			if p == "hsync-2.db" || p == "hsync-2.db.lock" {
				t.Errorf("database file leaked into entries: %s", p)
			}
		}
	}
}

func TestOnlineViewDirsAndExclude(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "keep", "x.txt"), "x")
	mustWrite(t, filepath.Join(root, "skip", "y.txt"), "y")

	dbPath := filepath.Join(root, "hsync-3.db")
	db, err := hashdb.Open(dbPath, "xxhash64", hashdb.KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	pred, err := filter.New([]config.PatternRule{{Exclude: true, Pattern: "skip"}}, root)
	if err != nil {
		t.Fatal(err)
	}

	v := NewOnline(root, db, pred, config.Default())
	entries, err := v.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].MinPath() != "keep/x.txt" {
		t.Fatalf("Entries() = %+v, want only keep/x.txt", entries)
	}

	dirs := v.Dirs()
	sort.Strings(dirs)
	for _, d := range dirs {
		if d == "skip" {
			t.Errorf("excluded directory %q should not appear in Dirs()", d)
		}
	}
}

func TestOfflineViewRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hsync-off.db")
	db, err := hashdb.Open(dbPath, "xxhash64", hashdb.KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id := fileid.Synthetic(1)
	if err := db.Upsert(id, 5, 100, 0xABCDEF); err != nil {
		t.Fatal(err)
	}
	if err := db.ToOffline(map[fileid.FileID][]string{id: {"a.txt", "nested/b.txt"}}); err != nil {
		t.Fatal(err)
	}

	v, err := NewOffline(db)
	if err != nil {
		t.Fatalf("NewOffline() error = %v", err)
	}
	entries, err := v.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Entries() = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Size != 5 || e.Hash != 0xABCDEF || !e.HashValid {
		t.Errorf("offline entry = %+v", e)
	}
	if got, ok := v.Resolve(id); !ok || got.ID != id {
		t.Errorf("Resolve() = %+v, %v", got, ok)
	}

	foundNested := false
	for _, d := range v.Dirs() {
		if d == "nested" {
			foundNested = true
		}
	}
	if !foundNested {
		t.Errorf("Dirs() = %v, want to include nested", v.Dirs())
	}
	if v.Root() != dbPath {
		t.Errorf("Root() = %q, want %q", v.Root(), dbPath)
	}
}
