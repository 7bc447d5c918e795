// Package update provides the "update" command, running the hashing
// pipeline (Module D) over a tree and committing fresh hashes to its
// database.
package update

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/pipeline"
	"github.com/ambrevar/hsync/internal/treeview"
)

var updateCmd = &cobra.Command{
	Use:   "update <dir>",
	Short: "Hash a directory tree, caching fresh content hashes",
	Args:  cobra.ExactArgs(1),
	RunE:  RunE(false),
}

// RunE builds the hashing-pass RunE closure shared by update and rehash,
// which differ only in whether a fresh cached hash is trusted.
func RunE(forceRehash bool) func(cmd *cobra.Command, args []string) error {
	return func(c *cobra.Command, args []string) error {
		dir := args[0]
		log := logger.With("path", dir, "command", c.Name())

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
			return fmt.Errorf("update requires a directory, not an offline database")
		}

		start := time.Now()
		stats, err := pipeline.Run(context.Background(), online, tree.DB, cfg, forceRehash)
		duration := time.Since(start)
		if err != nil {
			log.Error("hashing failed", "error", err, "duration", duration)
			return err
		}

		log.Info("hashing completed",
			"duration", duration,
			"scanned", stats.Scanned,
			"hashed", stats.Hashed,
			"skipped", stats.Skipped,
			"bytes", cmdutil.FormatBytes(stats.Bytes),
		)
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s: scanned %d, hashed %d, skipped %d (%s)\n",
			dir, stats.Scanned, stats.Hashed, stats.Skipped, cmdutil.FormatBytes(stats.Bytes))
		return err
	}
}

func init() {
	cmd.Register(updateCmd)
}
