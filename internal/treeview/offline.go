package treeview

import (
	"sort"

	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/hashdb"
)

// OfflineView wraps a database produced by mkoffline: one that carries a
// paths table in addition to entries, so the tree's structure can be
// consulted without access to the original filesystem. It never touches
// disk beyond the database file itself, and is never usable as a sync
// target (spec §3 Module C, §4.1 mkoffline).
type OfflineView struct {
	path    string
	entries []Entry
	dirs    []string
}

// NewOffline loads an offline view's full contents from db. db must
// already be of Kind() == hashdb.KindOffline.
func NewOffline(db *hashdb.DB) (*OfflineView, error) {
	allEntries, err := db.LoadAllEntries()
	if err != nil {
		return nil, err
	}
	paths, err := db.LoadOfflinePaths()
	if err != nil {
		return nil, err
	}

	dirSet := map[string]struct{}{".": {}}
	entries := make([]Entry, 0, len(allEntries))
	for id, e := range allEntries {
		ps := paths[id]
		entries = append(entries, Entry{
			ID:        id,
			Size:      e.Size,
			Mtime:     e.Mtime,
			Hash:      e.Hash,
			HashValid: true,
			Paths:     ps,
		})
		for _, p := range ps {
			for d := parentDir(p); d != ""; d = parentDir(d) {
				if _, ok := dirSet[d]; ok {
					break
				}
				dirSet[d] = struct{}{}
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MinPath() < entries[j].MinPath() })

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	return &OfflineView{path: db.Path(), entries: entries, dirs: dirs}, nil
}

func parentDir(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i < 0 {
		return ""
	}
	return p[:i]
}

func (v *OfflineView) Root() string { return v.path }

func (v *OfflineView) Entries() ([]Entry, error) { return v.entries, nil }

func (v *OfflineView) Dirs() []string { return v.dirs }

func (v *OfflineView) Resolve(id fileid.FileID) (Entry, bool) {
	for _, e := range v.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
