// Package fdupes provides the "fdupes" command: list groups of duplicate
// files within one or more trees (Module G Fdupes).
package fdupes

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var fdupesCmd = &cobra.Command{
	Use:   "fdupes <locations...>",
	Short: "List groups of duplicate files across one or more trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("locations", args, "command", "fdupes")

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}

		views, trees, err := cmdutil.OpenAndHashAll(ctx, args, cfg)
		if err != nil {
			log.Error("failed to open trees", "error", err)
			return err
		}
		defer cmdutil.CloseAll(trees)

		result, err := setengine.Query(ctx, views, setengine.Fdupes, cfg, nil)
		if err != nil {
			log.Error("fdupes query failed", "error", err)
			return err
		}

		n, err := cmdutil.PrintGroups(c.OutOrStdout(), result.Groups, cfg.LinkMode)
		if err != nil {
			return err
		}
		log.Info("fdupes completed", "groups", n)
		if n == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no duplicates found")
		}
		return err
	},
}

func init() {
	cmd.Register(fdupesCmd)
}
