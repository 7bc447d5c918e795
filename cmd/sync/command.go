// Package sync provides the "sync" command: reconcile a target tree's
// path structure to match a source tree by content identity (Modules E
// and F), without copying file data.
package sync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
)

var syncCmd = &cobra.Command{
	Use:   "sync <source> <target>",
	Short: "Reconcile target's path structure to match source by content",
	Args:  cobra.ExactArgs(2),
	RunE:  RunE(false),
}

// RunE builds the sync RunE closure; swapped is true for rsync, which
// reverses the source/target argument order.
func RunE(swapped bool) func(c *cobra.Command, args []string) error {
	return func(c *cobra.Command, args []string) error {
		source, target := args[0], args[1]
		if swapped {
			source, target = target, source
		}
		log := logger.With("source", source, "target", target, "command", c.Name())

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}
		process, err := c.Flags().GetBool("process")
		if err != nil {
			return err
		}
		dryRun := !process

		result, err := cmdutil.Reconcile(context.Background(), source, target, cfg, dryRun)
		if err != nil {
			log.Error("reconcile failed", "error", err)
			return err
		}

		log.Info("reconcile completed",
			"matched", result.Matched,
			"unmatched_source", result.UnmatchedSource,
			"unmatched_target", result.UnmatchedTarget,
			"steps", len(result.Steps),
			"dry_run", dryRun,
		)
		mode := "dry run"
		if !dryRun {
			mode = "applied"
		}
		_, err = fmt.Fprintf(c.OutOrStdout(), "%s -> %s: %d steps (%s)\n", source, target, len(result.Steps), mode)
		return err
	}
}

func init() {
	syncCmd.Flags().BoolP("process", "p", false, "Actually perform the plan instead of a dry run")
	cmd.Register(syncCmd)
}
