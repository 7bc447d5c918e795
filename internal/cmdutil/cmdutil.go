// Package cmdutil holds the flag-parsing and tree-opening scaffolding
// shared by every cmd/<verb> package, so each verb only implements its own
// RunE body rather than re-deriving config.Config and a treeview.View from
// flags. This mirrors the teacher's pattern of one cobra.Command per verb,
// generalized because Module G/F verbs share the same location/flag
// surface (spec.md §6) instead of each hand-rolling -e/--ignore-file.
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/filter"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/treeview"
)

// RegisterGlobalFlags adds the persistent, verb-independent flags to the
// root command (spec §6 "global options"): hasher selection, worker
// count, size caps, database location overrides, and the include/exclude
// pattern stack.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("hash-kind", "xxhash64", "Built-in hasher to use (xxhash64, fnv32)")
	root.PersistentFlags().String("hasher-exec", "", "Path to an external hasher executable, overrides --hash-kind")
	root.PersistentFlags().Int("workers", 0, "Hashing worker pool size (0 = number of CPUs)")
	root.PersistentFlags().Int64("max-size", 0, "Skip files larger than this many bytes (0 = no cap)")
	root.PersistentFlags().Int64("min-size", 0, "Skip files smaller than this many bytes in set queries (0 = no floor)")
	root.PersistentFlags().Bool("size-only", false, "Match files by size alone, ignoring hash")
	root.PersistentFlags().String("db-prefix", "hsync", "Database file basename prefix")
	root.PersistentFlags().String("db-dir", "", "Place the database in this directory instead of the tree root")
	root.PersistentFlags().String("db-path", "", "Use this database file explicitly, overriding --db-prefix/--db-dir")
	root.PersistentFlags().StringArrayP("exclude", "e", nil, "Exclude glob pattern, can be repeated")
	root.PersistentFlags().StringArrayP("include", "I", nil, "Re-include glob pattern overriding a prior exclude, can be repeated")
	root.PersistentFlags().Bool("links", false, "Set-engine output: emit every path of every matching file")
	root.PersistentFlags().Bool("all-links", false, "Set-engine output: group by file but list every path")
}

// ConfigFromFlags builds a config.Config from the persistent flags
// registered by RegisterGlobalFlags.
func ConfigFromFlags(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	var err error
	if cfg.HasherKind, err = cmd.Flags().GetString("hash-kind"); err != nil {
		return cfg, err
	}
	if cfg.HasherExec, err = cmd.Flags().GetString("hasher-exec"); err != nil {
		return cfg, err
	}
	if cfg.Workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return cfg, err
	}
	if cfg.MaxSize, err = cmd.Flags().GetInt64("max-size"); err != nil {
		return cfg, err
	}
	if cfg.MinSize, err = cmd.Flags().GetInt64("min-size"); err != nil {
		return cfg, err
	}
	if cfg.SizeOnly, err = cmd.Flags().GetBool("size-only"); err != nil {
		return cfg, err
	}
	if cfg.DBPrefix, err = cmd.Flags().GetString("db-prefix"); err != nil {
		return cfg, err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return cfg, err
	}
	if cfg.DBPath, err = cmd.Flags().GetString("db-path"); err != nil {
		return cfg, err
	}

	excludes, err := cmd.Flags().GetStringArray("exclude")
	if err != nil {
		return cfg, err
	}
	includes, err := cmd.Flags().GetStringArray("include")
	if err != nil {
		return cfg, err
	}
	for _, p := range excludes {
		cfg.Rules = append(cfg.Rules, config.PatternRule{Exclude: true, Pattern: p})
	}
	for _, p := range includes {
		cfg.Rules = append(cfg.Rules, config.PatternRule{Exclude: false, Pattern: p})
	}

	allLinks, err := cmd.Flags().GetBool("all-links")
	if err != nil {
		return cfg, err
	}
	links, err := cmd.Flags().GetBool("links")
	if err != nil {
		return cfg, err
	}
	switch {
	case allLinks:
		cfg.LinkMode = "all-links"
	case links:
		cfg.LinkMode = "links"
	default:
		cfg.LinkMode = "file"
	}

	return cfg, nil
}

// Tree bundles an opened view with the database backing it, so callers
// can Close it deterministically.
type Tree struct {
	View treeview.View
	DB   *hashdb.DB
}

// Close releases the underlying database handle, if any.
func (t *Tree) Close() error {
	if t.DB == nil {
		return nil
	}
	return t.DB.Close()
}

// OpenLocation opens loc as an online tree (a directory, opening or
// creating its hash database) or an offline tree (a database file given
// directly), per spec §6 "a directory path, or a path to an offline DB
// file".
func OpenLocation(loc string, cfg config.Config) (*Tree, error) {
	info, err := os.Stat(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to stat location %q: %w", loc, err)
	}

	if !info.IsDir() {
		db, err := hashdb.Open(loc, cfg.HasherKind, hashdb.KindOffline)
		if err != nil {
			return nil, err
		}
		view, err := treeview.NewOffline(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Tree{View: view, DB: db}, nil
	}

	dbPath, err := resolveDBPath(loc, cfg)
	if err != nil {
		return nil, err
	}
	db, err := hashdb.Open(dbPath, cfg.HasherKind, hashdb.KindOnline)
	if err != nil {
		return nil, err
	}
	match, err := filter.New(cfg.Rules, loc)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	view := treeview.NewOnline(loc, db, match, cfg)
	return &Tree{View: view, DB: db}, nil
}

func resolveDBPath(root string, cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	existing, err := hashdb.Find(root, cfg.DBPrefix)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	return hashdb.Locate(root, cfg.DBPrefix, cfg.DBDir, ""), nil
}

// OutputPaths projects one entry's path set per the configured output
// mode (spec §4.4): "file" yields the lexicographic-minimum path alone,
// "links"/"all-links" yield every path.
func OutputPaths(e treeview.Entry, linkMode string) []string {
	if linkMode == "file" {
		return []string{e.MinPath()}
	}
	return e.SortedPaths()
}

// FormatBytes renders a byte count the way command summaries and logs
// present sizes (spec §4.4 ambient UX), wrapping dustin/go-humanize
// rather than hand-rolling unit math.
func FormatBytes(n int64) string {
	if n < 0 {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(n))
}

// Basename is a small convenience used by verbs that print a location
// alongside its resolved database path.
func Basename(path string) string {
	return filepath.Base(path)
}
