// Package hashdb implements the durable per-tree hash database (spec §3,
// §6): a single SQLite file at the tree root mapping file-id to
// (size, mtime, hash), plus an offline tree's path table. Grounded on the
// WAL-mode, single-writer SQLite pattern used by gfbonny-cxdb's session
// store.
package hashdb

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/herrors"
	"github.com/ambrevar/hsync/internal/logger"
)

const schemaVersion = 1

// DBKind distinguishes an online tree's cache from an offline snapshot.
type DBKind string

const (
	KindOnline  DBKind = "online"
	KindOffline DBKind = "offline"
)

// nameRe matches the reserved database basename pattern (spec §6):
// <prefix>-<digits>.db. Entries with a matching basename are never
// reported as tree entries (invariant I4).
var nameRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)-([0-9]+)\.db$`)

// IsReservedName reports whether basename is a hash database file (or its
// lock sidecar) for the given prefix, per invariant I4.
func IsReservedName(basename, prefix string) bool {
	if strings.HasSuffix(basename, ".lock") {
		basename = strings.TrimSuffix(basename, ".lock")
	}
	m := nameRe.FindStringSubmatch(basename)
	return m != nil && m[1] == prefix
}

// Entry is one row of the entries table.
type Entry struct {
	Size  int64
	Mtime int64
	Hash  uint64
}

// DB is an open handle on one tree's hash database.
type DB struct {
	path     string
	lockPath string
	lockFile *os.File
	sql      *sql.DB
	kind     DBKind
	hashKind string
}

// Locate computes the database path for a tree root given the configured
// prefix/dir/explicit-path override policy (spec §6).
func Locate(root, prefix, dir, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if prefix == "" {
		prefix = "hsync"
	}
	base := root
	if dir != "" {
		base = dir
	}
	return filepath.Join(base, prefix+"-"+randomSuffix()+".db")
}

// Find locates an existing database under root matching prefix, returning
// "" if none exists yet.
func Find(root, prefix string) (string, error) {
	if prefix == "" {
		prefix = "hsync"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", herrors.Wrap(herrors.DirInaccessible, root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsReservedName(e.Name(), prefix) {
			return filepath.Join(root, e.Name()), nil
		}
	}
	return "", nil
}

func randomSuffix() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%d", binary.BigEndian.Uint32(b[:])%1_000_000_000)
}

// Open opens (creating on first use) the database at path for hasherKind,
// acquiring the whole-file advisory lock described in spec §5 reentrancy.
// Opening a DB created under a different hasher identifier fails with
// HashKindMismatch (spec §4.1, invariant 7 of §8).
func Open(path, hasherKind string, kind DBKind) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, herrors.Wrap(herrors.DbOpenFailed, path, err)
	}

	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, herrors.Wrap(herrors.DbOpenFailed, path, fmt.Errorf("database locked by another invocation: %w", err))
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
		return nil, herrors.Wrap(herrors.DbOpenFailed, path, err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
		return nil, herrors.Wrap(herrors.DbOpenFailed, path, err)
	}

	db := &DB{path: path, lockPath: lockPath, lockFile: lockFile, sql: sqlDB, kind: kind, hashKind: hasherKind}
	if err := db.init(hasherKind, kind); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init(hasherKind string, kind DBKind) error {
	if _, err := db.sql.Exec(`
		CREATE TABLE IF NOT EXISTS header (
			schema_version INTEGER NOT NULL,
			hasher_kind TEXT NOT NULL,
			db_kind TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS entries (
			file_id TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			hash INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS paths (
			file_id TEXT NOT NULL,
			path BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS paths_file_id ON paths(file_id);
	`); err != nil {
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}

	row := db.sql.QueryRow("SELECT schema_version, hasher_kind, db_kind FROM header LIMIT 1")
	var version int
	var storedHashKind, storedKind string
	switch err := row.Scan(&version, &storedHashKind, &storedKind); err {
	case sql.ErrNoRows:
		_, err := db.sql.Exec("INSERT INTO header (schema_version, hasher_kind, db_kind) VALUES (?, ?, ?)",
			schemaVersion, hasherKind, string(kind))
		if err != nil {
			return herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
		return nil
	case nil:
		if version != schemaVersion {
			return herrors.Wrap(herrors.DbSchemaMismatch, db.path, fmt.Errorf("stored version %d, want %d", version, schemaVersion))
		}
		if storedHashKind != hasherKind {
			return herrors.Wrap(herrors.HashKindMismatch, db.path, fmt.Errorf("database uses %q, requested %q", storedHashKind, hasherKind))
		}
		db.kind = DBKind(storedKind)
		return nil
	default:
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
}

// Path returns the database's file path.
func (db *DB) Path() string { return db.path }

// Kind returns whether this database is online or offline.
func (db *DB) Kind() DBKind { return db.kind }

// Close releases the SQLite handle and the advisory lock.
func (db *DB) Close() error {
	var firstErr error
	if db.sql != nil {
		if err := db.sql.Close(); err != nil {
			firstErr = err
		}
	}
	if db.lockFile != nil {
		_ = db.lockFile.Close()
		_ = os.Remove(db.lockPath)
	}
	return firstErr
}

// Lookup returns the cached entry for id, if any.
func (db *DB) Lookup(id fileid.FileID) (Entry, bool, error) {
	row := db.sql.QueryRow("SELECT size, mtime, hash FROM entries WHERE file_id = ?", id.String())
	var e Entry
	var hash int64
	switch err := row.Scan(&e.Size, &e.Mtime, &hash); err {
	case sql.ErrNoRows:
		return Entry{}, false, nil
	case nil:
		e.Hash = uint64(hash)
		return e, true, nil
	default:
		return Entry{}, false, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
}

// Fresh implements invariant I2: a cached hash is fresh iff the observed
// (size, mtime) matches what's stored.
func (db *DB) Fresh(id fileid.FileID, size, mtime int64) (bool, error) {
	e, ok, err := db.Lookup(id)
	if err != nil || !ok {
		return false, err
	}
	return e.Size == size && e.Mtime == mtime, nil
}

// Upsert commits a freshly computed hash for id.
func (db *DB) Upsert(id fileid.FileID, size, mtime int64, hash uint64) error {
	_, err := db.sql.Exec(`
		INSERT INTO entries (file_id, size, mtime, hash) VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET size=excluded.size, mtime=excluded.mtime, hash=excluded.hash
	`, id.String(), size, mtime, int64(hash))
	if err != nil {
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	return nil
}

// Prune drops entries whose file-id is not present in liveIDs (cleandb).
func (db *DB) Prune(liveIDs map[fileid.FileID]struct{}) (int, error) {
	rows, err := db.sql.Query("SELECT file_id FROM entries")
	if err != nil {
		return 0, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	var dead []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			_ = rows.Close()
			return 0, herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
		id, ok := fileid.Parse(s)
		if !ok {
			continue
		}
		if _, live := liveIDs[id]; !live {
			dead = append(dead, s)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	_ = rows.Close()

	for _, s := range dead {
		if _, err := db.sql.Exec("DELETE FROM entries WHERE file_id = ?", s); err != nil {
			return 0, herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
		if _, err := db.sql.Exec("DELETE FROM paths WHERE file_id = ?", s); err != nil {
			return 0, herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
	}
	logger.Debug("pruned dead entries", "db", db.path, "count", len(dead))
	return len(dead), nil
}

// Compact reclaims space freed by Prune (cleandb's compaction step).
func (db *DB) Compact() error {
	if _, err := db.sql.Exec("VACUUM"); err != nil {
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	return nil
}

// ToOffline writes the paths table and marks this database offline
// (mkoffline), recording every path for each file-id.
func (db *DB) ToOffline(paths map[fileid.FileID][]string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	if _, err := tx.Exec("DELETE FROM paths"); err != nil {
		_ = tx.Rollback()
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	stmt, err := tx.Prepare("INSERT INTO paths (file_id, path) VALUES (?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	for id, ps := range paths {
		for _, p := range ps {
			if _, err := stmt.Exec(id.String(), []byte(p)); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return herrors.Wrap(herrors.DbCorrupt, db.path, err)
			}
		}
	}
	_ = stmt.Close()
	if _, err := tx.Exec("UPDATE header SET db_kind = ?", string(KindOffline)); err != nil {
		_ = tx.Rollback()
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	if err := tx.Commit(); err != nil {
		return herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	db.kind = KindOffline
	return nil
}

// LoadOfflinePaths reads the full path table, keyed by file-id, for an
// offline database substituting for a live directory.
func (db *DB) LoadOfflinePaths() (map[fileid.FileID][]string, error) {
	rows, err := db.sql.Query("SELECT file_id, path FROM paths")
	if err != nil {
		return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	defer rows.Close()

	out := make(map[fileid.FileID][]string)
	for rows.Next() {
		var idStr string
		var pathBytes []byte
		if err := rows.Scan(&idStr, &pathBytes); err != nil {
			return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
		id, ok := fileid.Parse(idStr)
		if !ok {
			continue
		}
		out[id] = append(out[id], string(pathBytes))
	}
	if err := rows.Err(); err != nil {
		return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	return out, nil
}

// LoadAllEntries reads every (file_id, entry) pair, used by offline views
// and by check to enumerate cached state without a live walk.
func (db *DB) LoadAllEntries() (map[fileid.FileID]Entry, error) {
	rows, err := db.sql.Query("SELECT file_id, size, mtime, hash FROM entries")
	if err != nil {
		return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	defer rows.Close()

	out := make(map[fileid.FileID]Entry)
	for rows.Next() {
		var idStr string
		var e Entry
		var hash int64
		if err := rows.Scan(&idStr, &e.Size, &e.Mtime, &hash); err != nil {
			return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
		}
		id, ok := fileid.Parse(idStr)
		if !ok {
			continue
		}
		e.Hash = uint64(hash)
		out[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, herrors.Wrap(herrors.DbCorrupt, db.path, err)
	}
	return out, nil
}
