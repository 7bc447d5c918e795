// Package lookup provides the "lookup" command: print the cached
// (size, mtime, hash) for one path, or report it as not cached or stale.
package lookup

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/logger"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <dir> <path>",
	Short: "Print the cached hash entry for one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		dir := args[0]
		relPath := args[1]
		log := logger.With("path", relPath, "command", "lookup")

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}

		dbPath, err := hashdb.Find(dir, cfg.DBPrefix)
		if err != nil {
			return err
		}
		if dbPath == "" {
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s: not cached\n", relPath)
			return err
		}
		db, err := hashdb.Open(dbPath, cfg.HasherKind, hashdb.KindOnline)
		if err != nil {
			log.Error("failed to open database", "error", err)
			return err
		}
		defer db.Close()

		id, info, err := cmdutil.FileIDOf(filepath.Join(dir, relPath))
		if err != nil {
			return err
		}

		entry, ok, err := db.Lookup(id)
		if err != nil {
			return err
		}
		if !ok {
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s: not cached\n", relPath)
			return err
		}

		fresh := entry.Size == info.Size() && entry.Mtime == info.ModTime().Unix()
		status := "fresh"
		if !fresh {
			status = "stale"
		}
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s: size=%d mtime=%d hash=%x (%s)\n",
			relPath, entry.Size, entry.Mtime, entry.Hash, status)
		return err
	},
}

func init() {
	cmd.Register(lookupCmd)
}
