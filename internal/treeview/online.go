package treeview

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/filter"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/logger"
)

// OnlineView is a live directory backed by an open hash database.
type OnlineView struct {
	root    string
	db      *hashdb.DB
	match   filter.Predicate
	dbName  string // basename of db.Path(), skipped during enumeration
	prefix  string // DB prefix; reserved DB basenames are skipped too
	workers int
}

// NewOnline builds an online view over root, using db for cached-hash
// lookups and match to apply the include/exclude pattern stack.
func NewOnline(root string, db *hashdb.DB, match filter.Predicate, cfg config.Config) *OnlineView {
	if match == nil {
		match = filter.NoOp()
	}
	return &OnlineView{
		root:    root,
		db:      db,
		match:   match,
		dbName:  filepath.Base(db.Path()),
		prefix:  cfg.DBPrefix,
		workers: cfg.ResolvedWorkers(runtime.NumCPU()),
	}
}

func (v *OnlineView) Root() string { return v.root }

// Entries walks the tree rooted at Root, grouping paths by (dev, inode)
// into Entry records. Directory reads are parallelized across v.workers
// goroutines bounded by a semaphore; a given path's stat is only ever
// performed by the single worker that claimed its parent directory
// (spec §5).
func (v *OnlineView) Entries() ([]Entry, error) {
	entries, _, err := v.walk()
	return entries, err
}

// Dirs lists every directory path reachable under Root, except excluded
// directories and everything below them.
func (v *OnlineView) Dirs() []string {
	_, dirs, err := v.walk()
	if err != nil {
		return nil
	}
	return dirs
}

func (v *OnlineView) walk() ([]Entry, []string, error) {
	byID := xsync.NewMapOf[fileid.FileID, *Entry]()
	dirs := xsync.NewMapOf[string, struct{}]()

	sem := make(chan struct{}, v.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var walkErr error

	var walk func(relDir string)
	walk = func(relDir string) {
		defer wg.Done()
		absDir := filepath.Join(v.root, relDir)
		ents, err := os.ReadDir(absDir)
		if err != nil {
			logger.Warn("directory inaccessible", "path", absDir, "error", err)
			return
		}
		if relDir == "" {
			dirs.Store(".", struct{}{})
		} else {
			dirs.Store(filepath.ToSlash(relDir), struct{}{})
		}

		sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })

		for _, de := range ents {
			relPath := filepath.Join(relDir, de.Name())
			if de.IsDir() {
				if v.match.Excluded(relPath, true) {
					continue
				}
				wg.Add(1)
				select {
				case sem <- struct{}{}:
					go func(p string) {
						defer func() { <-sem }()
						walk(p)
					}(relPath)
				default:
					// Pool saturated: recurse inline rather than spawn an
					// unbounded goroutine.
					walk(relPath)
				}
				continue
			}

			// The open DB with its .lock and SQLite WAL sidecars, and any
			// other reserved DB basename, are never tree entries (I4).
			name := de.Name()
			if name == v.dbName || name == v.dbName+".lock" || name == v.dbName+"-wal" ||
				name == v.dbName+"-shm" || hashdb.IsReservedName(name, v.prefix) {
				continue
			}
			if v.match.Excluded(relPath, false) {
				continue
			}
			if !de.Type().IsRegular() {
				continue
			}

			info, err := de.Info()
			if err != nil {
				logger.Warn("file unreadable", "path", relPath, "error", err)
				continue
			}
			st, ok := info.Sys().(*syscall.Stat_t)
			if !ok {
				mu.Lock()
				walkErr = errUnsupportedPlatform
				mu.Unlock()
				continue
			}

			id := fileid.FileID{Dev: uint64(st.Dev), Ino: uint64(st.Ino)} // #nosec G115
			relSlash := filepath.ToSlash(relPath)

			e, loaded := byID.LoadOrStore(id, &Entry{
				ID:    id,
				Size:  info.Size(),
				Mtime: info.ModTime().Unix(),
				Paths: []string{relSlash},
			})
			if loaded {
				e.Paths = append(e.Paths, relSlash)
			}
		}
	}

	wg.Add(1)
	walk("")
	wg.Wait()

	if walkErr != nil {
		return nil, nil, walkErr
	}

	var entries []Entry
	byID.Range(func(id fileid.FileID, e *Entry) bool {
		if fresh, _ := v.db.Fresh(id, e.Size, e.Mtime); fresh {
			if cached, ok, _ := v.db.Lookup(id); ok {
				e.Hash = cached.Hash
				e.HashValid = true
			}
		}
		entries = append(entries, *e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].MinPath() < entries[j].MinPath() })

	var dirList []string
	dirs.Range(func(d string, _ struct{}) bool {
		dirList = append(dirList, d)
		return true
	})
	sort.Strings(dirList)

	return entries, dirList, nil
}

func (v *OnlineView) Resolve(id fileid.FileID) (Entry, bool) {
	entries, _, err := v.walk()
	if err != nil {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// DB exposes the underlying database for callers that drive the hashing
// pipeline (Module D) or database maintenance verbs directly.
func (v *OnlineView) DB() *hashdb.DB { return v.db }

type unsupportedPlatformError struct{}

func (unsupportedPlatformError) Error() string {
	return "hsync requires a platform exposing POSIX device/inode identity (dev, ino) for hard-link detection"
}

var errUnsupportedPlatform = unsupportedPlatformError{}
