package hashdb

import (
	"path/filepath"
	"testing"

	"github.com/ambrevar/hsync/internal/fileid"
)

func TestIsReservedName(t *testing.T) {
	tests := []struct {
		name     string
		basename string
		prefix   string
		want     bool
	}{
		{"matching", "hsync-12345.db", "hsync", true},
		{"matching lock", "hsync-12345.db.lock", "hsync", true},
		{"wrong prefix", "other-12345.db", "hsync", false},
		{"not a db file", "readme.txt", "hsync", false},
		{"custom prefix", "myapp-1.db", "myapp", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReservedName(tt.basename, tt.prefix); got != tt.want {
				t.Errorf("IsReservedName(%q, %q) = %v, want %v", tt.basename, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestOpenCreatesAndReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-1.db")

	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id := fileid.FileID{Dev: 1, Ino: 2}
	if err := db.Upsert(id, 100, 1000, 0xDEADBEEF); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db2, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer db2.Close()

	entry, ok, err := db2.Lookup(id)
	if err != nil || !ok {
		t.Fatalf("Lookup() = %+v, %v, %v", entry, ok, err)
	}
	if entry.Size != 100 || entry.Mtime != 1000 || entry.Hash != 0xDEADBEEF {
		t.Errorf("Lookup() = %+v, want {100 1000 0xDEADBEEF}", entry)
	}
}

func TestOpenHashKindMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-2.db")

	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	db.Close()

	_, err = Open(path, "fnv32", KindOnline)
	if err == nil {
		t.Fatal("Open() with different hasher kind should fail")
	}
}

func TestOpenLockContention(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-3.db")

	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	_, err = Open(path, "xxhash64", KindOnline)
	if err == nil {
		t.Fatal("concurrent Open() on a locked database should fail")
	}
}

func TestFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-4.db")
	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id := fileid.FileID{Dev: 1, Ino: 9}
	fresh, err := db.Fresh(id, 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("Fresh() on missing entry should be false")
	}

	if err := db.Upsert(id, 10, 20, 42); err != nil {
		t.Fatal(err)
	}
	fresh, err = db.Fresh(id, 10, 20)
	if err != nil || !fresh {
		t.Errorf("Fresh() = %v, %v, want true, nil", fresh, err)
	}
	fresh, err = db.Fresh(id, 10, 21)
	if err != nil || fresh {
		t.Errorf("Fresh() with changed mtime = %v, %v, want false, nil", fresh, err)
	}
}

func TestPruneAndCompact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-5.db")
	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	live := fileid.FileID{Dev: 1, Ino: 1}
	dead := fileid.FileID{Dev: 1, Ino: 2}
	db.Upsert(live, 1, 1, 1)
	db.Upsert(dead, 2, 2, 2)

	n, err := db.Prune(map[fileid.FileID]struct{}{live: {}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d entries, want 1", n)
	}

	if _, ok, _ := db.Lookup(dead); ok {
		t.Error("dead entry should have been pruned")
	}
	if _, ok, _ := db.Lookup(live); !ok {
		t.Error("live entry should survive prune")
	}

	if err := db.Compact(); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
}

func TestToOfflineAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hsync-6.db")
	db, err := Open(path, "xxhash64", KindOnline)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id := fileid.FileID{Dev: 1, Ino: 1}
	db.Upsert(id, 1, 1, 1)

	err = db.ToOffline(map[fileid.FileID][]string{id: {"a.txt", "b/a.txt"}})
	if err != nil {
		t.Fatalf("ToOffline() error = %v", err)
	}
	if db.Kind() != KindOffline {
		t.Errorf("Kind() = %v, want offline", db.Kind())
	}

	paths, err := db.LoadOfflinePaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths[id]) != 2 {
		t.Errorf("LoadOfflinePaths() = %v, want 2 paths", paths[id])
	}
}
