// Package setengine implements the multi-tree set queries (Module G):
// duplicates, on-all/on-first-only/on-last-only membership, a two-tree
// comparison, and glob search. Grouping uses puzpuzpuz/xsync concurrent
// maps the same way internal/treeview does; Cmp is a
// dedicated path-keyed join grounded on opencoff-go-fio/cmp's
// xsync.MapOf[string, Pair] approach rather than a hash-keyed grouping,
// since "missing on one side" has no content key to group by.
package setengine

import (
	"context"
	"errors"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/treeview"
)

// errCmpRequiresTwoViews is returned when Query is called with kind Cmp
// and a view count other than two.
var errCmpRequiresTwoViews = errors.New("setengine: cmp requires exactly two tree views")

// QueryKind selects the classification applied to key-grouped entries.
type QueryKind int

const (
	Fdupes QueryKind = iota
	OnAll
	OnFirstOnly
	OnLastOnly
	Cmp
	Search
)

// Key is the content key entries are grouped by: (size, hash), or size
// alone in size-only mode, same as internal/match.
type Key struct {
	Size int64
	Hash uint64
}

// TaggedFileID pairs one entry with the index of the tree view it came
// from, so a group can answer "present in which trees".
type TaggedFileID struct {
	View  int
	Entry treeview.Entry
}

// Group is every entry sharing one content key, across all queried
// trees.
type Group struct {
	Key     Key
	Members []TaggedFileID
}

// CmpStatus classifies one relative path's state across two trees.
type CmpStatus int

const (
	CmpIdentical CmpStatus = iota
	CmpDifferent
	CmpMissingOnFirst
	CmpMissingOnSecond
	CmpTypeMismatch
)

// CmpEntry is one relative path's comparison outcome for the Cmp query.
type CmpEntry struct {
	Path   string
	Status CmpStatus
}

// Result is the outcome of one Query call. Exactly one of Groups,
// CmpEntries, or SearchMatches is populated, depending on kind.
type Result struct {
	Groups        []Group
	CmpEntries    []CmpEntry
	SearchMatches []TaggedFileID
}

// Query runs one multi-tree set query over views. For Fdupes/OnAll/
// OnFirstOnly/OnLastOnly, entries from every view are merged into
// key-partitioned groups and each group is classified by which view
// indices it touches. Cmp requires exactly two views and performs a
// path-keyed join instead. Search requires patterns and matches relative
// paths, ignoring content keys entirely.
func Query(ctx context.Context, views []treeview.View, kind QueryKind, cfg config.Config, patterns []string) (Result, error) {
	switch kind {
	case Cmp:
		return queryCmp(ctx, views)
	case Search:
		return querySearch(views, patterns)
	default:
		return queryGroups(ctx, views, kind, cfg)
	}
}

func queryGroups(ctx context.Context, views []treeview.View, kind QueryKind, cfg config.Config) (Result, error) {
	groups := xsync.NewMapOf[Key, []TaggedFileID]()

	for vi, v := range views {
		entries, err := v.Entries()
		if err != nil {
			return Result{}, err
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			if cfg.MinSize > 0 && e.Size < cfg.MinSize {
				continue
			}
			if cfg.MaxSize > 0 && e.Size > cfg.MaxSize {
				continue
			}
			k := keyOf(e, cfg.SizeOnly)
			tagged := TaggedFileID{View: vi, Entry: e}
			groups.Compute(k, func(old []TaggedFileID, loaded bool) ([]TaggedFileID, bool) {
				return append(old, tagged), false
			})
		}
	}

	var out []Group
	groups.Range(func(k Key, members []TaggedFileID) bool {
		if g, ok := classify(k, members, kind, len(views)); ok {
			out = append(out, g)
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		return firstMinPath(out[i]) < firstMinPath(out[j])
	})
	return Result{Groups: out}, nil
}

func classify(k Key, members []TaggedFileID, kind QueryKind, numViews int) (Group, bool) {
	switch kind {
	case Fdupes:
		if len(members) >= 2 {
			return Group{Key: k, Members: members}, true
		}
	case OnAll:
		if countDistinctViews(members) == numViews {
			return Group{Key: k, Members: members}, true
		}
	case OnFirstOnly:
		if hasView(members, 0) && !hasAnyOtherView(members, 0) {
			return Group{Key: k, Members: members}, true
		}
	case OnLastOnly:
		last := numViews - 1
		if hasView(members, last) && !hasAnyOtherView(members, last) {
			return Group{Key: k, Members: members}, true
		}
	}
	return Group{}, false
}

func countDistinctViews(members []TaggedFileID) int {
	seen := map[int]bool{}
	for _, m := range members {
		seen[m.View] = true
	}
	return len(seen)
}

func hasView(members []TaggedFileID, view int) bool {
	for _, m := range members {
		if m.View == view {
			return true
		}
	}
	return false
}

func hasAnyOtherView(members []TaggedFileID, view int) bool {
	for _, m := range members {
		if m.View != view {
			return true
		}
	}
	return false
}

func keyOf(e treeview.Entry, sizeOnly bool) Key {
	if sizeOnly {
		return Key{Size: e.Size}
	}
	return Key{Size: e.Size, Hash: e.Hash}
}

func firstMinPath(g Group) string {
	best := ""
	for i, m := range g.Members {
		p := m.Entry.MinPath()
		if i == 0 || p < best {
			best = p
		}
	}
	return best
}

// queryCmp joins two trees by relative path, the way opencoff-go-fio/cmp
// joins lhs/rhs fio.Info maps: every path present in either tree is
// classified, rather than grouped by content key. Directories join too
// (not just file entries), so a path that's a file on one side and a
// directory on the other reports as a type mismatch (I4) instead of a
// false missing-on-one-side.
func queryCmp(ctx context.Context, views []treeview.View) (Result, error) {
	if len(views) != 2 {
		return Result{}, errCmpRequiresTwoViews
	}

	firstPaths, err := pathIndex(views[0])
	if err != nil {
		return Result{}, err
	}
	secondPaths, err := pathIndex(views[1])
	if err != nil {
		return Result{}, err
	}
	firstDirs := dirSet(views[0])
	secondDirs := dirSet(views[1])

	seen := map[string]bool{}
	var out []CmpEntry

	for path, e1 := range firstPaths {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		seen[path] = true
		if secondDirs[path] {
			out = append(out, CmpEntry{Path: path, Status: CmpTypeMismatch})
			continue
		}
		e2, ok := secondPaths[path]
		if !ok {
			out = append(out, CmpEntry{Path: path, Status: CmpMissingOnSecond})
			continue
		}
		out = append(out, CmpEntry{Path: path, Status: compareEntries(e1, e2)})
	}
	for path := range secondPaths {
		if seen[path] {
			continue
		}
		if firstDirs[path] {
			out = append(out, CmpEntry{Path: path, Status: CmpTypeMismatch})
			continue
		}
		out = append(out, CmpEntry{Path: path, Status: CmpMissingOnFirst})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return Result{CmpEntries: out}, nil
}

// dirSet indexes a view's directories by relative path for the
// type-mismatch join in queryCmp.
func dirSet(v treeview.View) map[string]bool {
	out := make(map[string]bool)
	for _, d := range v.Dirs() {
		out[d] = true
	}
	return out
}

func compareEntries(a, b treeview.Entry) CmpStatus {
	if a.Size != b.Size {
		return CmpDifferent
	}
	if a.HashValid && b.HashValid && a.Hash != b.Hash {
		return CmpDifferent
	}
	return CmpIdentical
}

func pathIndex(v treeview.View) (map[string]treeview.Entry, error) {
	entries, err := v.Entries()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]treeview.Entry)
	for _, e := range entries {
		for _, p := range e.Paths {
			idx[p] = e
		}
	}
	return idx, nil
}

// querySearch matches every view's relative paths against patterns,
// ignoring content keys entirely: a pure path-glob filter, not a join.
func querySearch(views []treeview.View, patterns []string) (Result, error) {
	var out []TaggedFileID
	for vi, v := range views {
		entries, err := v.Entries()
		if err != nil {
			return Result{}, err
		}
		for _, e := range entries {
			for _, p := range e.Paths {
				if matchesAny(patterns, p) {
					out = append(out, TaggedFileID{View: vi, Entry: e})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entry.MinPath() < out[j].Entry.MinPath()
	})
	return Result{SearchMatches: out}, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
