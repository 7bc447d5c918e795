// Package onall provides the "onall" command: list content present in
// every given tree (Module G OnAll).
package onall

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var onallCmd = &cobra.Command{
	Use:   "onall <locations...>",
	Short: "List content present in every given tree",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("locations", args, "command", "onall")

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

		result, err := setengine.Query(ctx, views, setengine.OnAll, cfg, nil)
		if err != nil {
			log.Error("onall query failed", "error", err)
			return err
		}

		n, err := cmdutil.PrintGroups(c.OutOrStdout(), result.Groups, cfg.LinkMode)
		if err != nil {
			return err
		}
		log.Info("onall completed", "groups", n)
		if n == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no content shared by every tree")
		}
		return err
	},
}

func init() {
	cmd.Register(onallCmd)
}
