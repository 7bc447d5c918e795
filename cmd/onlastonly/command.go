// Package onlastonly provides the "onlastonly" command: list content
// present in the last tree and absent from every other (Module G
// OnLastOnly).
package onlastonly

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var onlastonlyCmd = &cobra.Command{
	Use:   "onlastonly <locations...>",
	Short: "List content present in the last tree and absent from the rest",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("locations", args, "command", "onlastonly")

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

		result, err := setengine.Query(ctx, views, setengine.OnLastOnly, cfg, nil)
		if err != nil {
			log.Error("onlastonly query failed", "error", err)
			return err
		}

		n, err := cmdutil.PrintGroups(c.OutOrStdout(), result.Groups, cfg.LinkMode)
		if err != nil {
			return err
		}
		log.Info("onlastonly completed", "groups", n)
		if n == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no content unique to the last tree")
		}
		return err
	},
}

func init() {
	cmd.Register(onlastonlyCmd)
}
