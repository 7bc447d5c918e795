// Package onfirstonly provides the "onfirstonly" command: list content
// present in the first tree and absent from every other (Module G
// OnFirstOnly).
package onfirstonly

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var onfirstonlyCmd = &cobra.Command{
	Use:   "onfirstonly <locations...>",
	Short: "List content present in the first tree and absent from the rest",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("locations", args, "command", "onfirstonly")

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

		result, err := setengine.Query(ctx, views, setengine.OnFirstOnly, cfg, nil)
		if err != nil {
			log.Error("onfirstonly query failed", "error", err)
			return err
		}

		n, err := cmdutil.PrintGroups(c.OutOrStdout(), result.Groups, cfg.LinkMode)
		if err != nil {
			return err
		}
		log.Info("onfirstonly completed", "groups", n)
		if n == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no content unique to the first tree")
		}
		return err
	},
}

func init() {
	cmd.Register(onfirstonlyCmd)
}
