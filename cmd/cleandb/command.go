// Package cleandb provides the "cleandb" command: prune dead entries from
// a tree's database and compact it (Module B).
package cleandb

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/treeview"
)

var cleandbCmd = &cobra.Command{
	Use:   "cleandb <dir>",
	Short: "Prune dead entries from a tree's database and compact it",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		dir := args[0]
		log := logger.With("path", dir, "command", "cleandb")

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
			return fmt.Errorf("cleandb requires a directory, not an offline database")
		}

		entries, err := online.Entries()
		if err != nil {
			return err
		}
		live := make(map[fileid.FileID]struct{}, len(entries))
		for _, e := range entries {
			live[e.ID] = struct{}{}
		}

		pruned, err := tree.DB.Prune(live)
		if err != nil {
			log.Error("prune failed", "error", err)
			return err
		}
		if err := tree.DB.Compact(); err != nil {
			log.Error("compact failed", "error", err)
			return err
		}

		log.Info("database cleaned", "pruned", pruned)
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s: pruned %d dead entries\n", dir, pruned)
		return err
	},
}

func init() {
	cmd.Register(cleandbCmd)
}
