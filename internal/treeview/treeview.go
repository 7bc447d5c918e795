// Package treeview provides the uniform read-model over a tree, online
// (a live directory plus its hash database) or offline (a database alone
// that also carries the directory structure), per spec §3-§4.1 Module C.
package treeview

import (
	"sort"

	"github.com/ambrevar/hsync/internal/fileid"
)

// Entry is one file's identity, size, mtime, optional cached hash, and the
// set of relative paths under the tree root that alias it (spec §3).
type Entry struct {
	ID    fileid.FileID
	Size  int64
	Mtime int64
	Hash  uint64
	// HashValid is false when no fresh cached hash exists for this entry.
	HashValid bool
	Paths     []string
}

// SortedPaths returns a copy of Entry.Paths in ascending lexicographic
// order, used wherever the spec calls for the "lexicographically smallest
// path" tie-break (§4.2 step 2-3).
func (e Entry) SortedPaths() []string {
	out := append([]string(nil), e.Paths...)
	sort.Strings(out)
	return out
}

// MinPath returns the lexicographically smallest path aliasing this
// entry, used for "file mode" set-engine output (spec §4.4).
func (e Entry) MinPath() string {
	sp := e.SortedPaths()
	if len(sp) == 0 {
		return ""
	}
	return sp[0]
}

// View is the read-model shared by online and offline trees.
type View interface {
	// Root is the tree's root path (a directory for an online view, the
	// database file for an offline view).
	Root() string
	// Entries returns every file entry, sorted by each entry's
	// lexicographically smallest path (MinPath) for both online and
	// offline views.
	Entries() ([]Entry, error)
	// Resolve looks up one entry by file-id.
	Resolve(id fileid.FileID) (Entry, bool)
	// Dirs lists every directory path under the tree root (derived for
	// online trees, stored for offline trees).
	Dirs() []string
}
