// Package subdir provides the "subdir" command: an update scoped to one
// subtree, sharing the parent tree's database so sibling subtrees are not
// rewalked.
package subdir

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/filter"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/pipeline"
	"github.com/ambrevar/hsync/internal/treeview"
)

var subdirCmd = &cobra.Command{
	Use:   "subdir <dir> <subpath>",
	Short: "Hash one subtree, reusing the tree root's database",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		root := args[0]
		subpath := args[1]
		log := logger.With("root", root, "subpath", subpath, "command", "subdir")

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}

		dbPath, err := hashdb.Find(root, cfg.DBPrefix)
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = hashdb.Locate(root, cfg.DBPrefix, cfg.DBDir, cfg.DBPath)
		}
		db, err := hashdb.Open(dbPath, cfg.HasherKind, hashdb.KindOnline)
		if err != nil {
			log.Error("failed to open database", "error", err)
			return err
		}
		defer db.Close()

		match, err := filter.New(cfg.Rules, root)
		if err != nil {
			return err
		}

		scopedRoot := filepath.Join(root, subpath)
		view := treeview.NewOnline(scopedRoot, db, match, cfg)

		start := time.Now()
		stats, err := pipeline.Run(context.Background(), view, db, cfg, false)
		duration := time.Since(start)
		if err != nil {
			log.Error("hashing failed", "error", err, "duration", duration)
			return err
		}

		log.Info("subtree hashing completed",
			"duration", duration,
			"scanned", stats.Scanned,
			"hashed", stats.Hashed,
			"skipped", stats.Skipped,
		)
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s: scanned %d, hashed %d, skipped %d (%s)\n",
			scopedRoot, stats.Scanned, stats.Hashed, stats.Skipped, cmdutil.FormatBytes(stats.Bytes))
		return err
	},
}

func init() {
	cmd.Register(subdirCmd)
}
