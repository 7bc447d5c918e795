// Package mkoffline provides the "mkoffline" command: snapshot an online
// tree's paths and hashes into a standalone offline database file.
package mkoffline

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/pipeline"
	"github.com/ambrevar/hsync/internal/treeview"
)

var mkofflineCmd = &cobra.Command{
	Use:   "mkoffline <dir> <outfile>",
	Short: "Snapshot a tree's paths and hashes into a standalone offline database",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		dir := args[0]
		outfile := args[1]
		log := logger.With("path", dir, "outfile", outfile, "command", "mkoffline")

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}

		tree, err := cmdutil.OpenLocation(dir, cfg)
		if err != nil {
			log.Error("failed to open tree", "error", err)
			return err
		}
		defer tree.Close()

		online, ok := tree.View.(*treeview.OnlineView)
		if !ok {
			return fmt.Errorf("mkoffline requires a directory, not an offline database")
		}

		if _, err := pipeline.Run(context.Background(), online, tree.DB, cfg, false); err != nil {
			log.Error("hashing failed", "error", err)
			return err
		}

		entries, err := online.Entries()
		if err != nil {
			return err
		}

		out, err := hashdb.Open(outfile, cfg.HasherKind, hashdb.KindOnline)
		if err != nil {
			log.Error("failed to create offline database", "error", err)
			return err
		}
		defer out.Close()

		paths := make(map[fileid.FileID][]string, len(entries))
		for i, e := range entries {
			id := fileid.Synthetic(uint64(i + 1))
			if err := out.Upsert(id, e.Size, e.Mtime, e.Hash); err != nil {
				return err
			}
			paths[id] = e.Paths
		}
		if err := out.ToOffline(paths); err != nil {
			log.Error("failed to write offline snapshot", "error", err)
			return err
		}

		log.Info("offline snapshot written", "entries", len(entries))
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s: wrote %d entries to %s\n", dir, len(entries), outfile)
		return err
	},
}

func init() {
	cmd.Register(mkofflineCmd)
}
