// Package search provides the "search" command: list files whose relative
// path matches any of the given glob patterns (Module G Search).
package search

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var searchCmd = &cobra.Command{
	Use:   "search <locations...>",
	Short: "List files whose relative path matches any --glob pattern",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("locations", args, "command", "search")

		patterns, err := c.Flags().GetStringArray("glob")
		if err != nil {
			return err
		}
		if len(patterns) == 0 {
			return fmt.Errorf("search requires at least one --glob pattern")
		}

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

		result, err := setengine.Query(ctx, views, setengine.Search, cfg, patterns)
		if err != nil {
			log.Error("search failed", "error", err)
			return err
		}

		for _, m := range result.SearchMatches {
			for _, p := range cmdutil.OutputPaths(m.Entry, cfg.LinkMode) {
				if _, err := fmt.Fprintln(c.OutOrStdout(), p); err != nil {
					return err
				}
			}
		}

		log.Info("search completed", "matches", len(result.SearchMatches))
		if len(result.SearchMatches) == 0 {
			return fmt.Errorf("query produced no results")
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringArray("glob", nil, "Glob pattern to match relative paths against, can be repeated")
	cmd.Register(searchCmd)
}
