// Package cmp provides the "cmp" command: report, per relative path,
// whether the file is missing, different, or identical between two trees
// (Module G Cmp).
package cmp

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/setengine"
)

var cmpCmd = &cobra.Command{
	Use:   "cmp <a> <b>",
	Short: "Compare two trees path by path",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()
		log := logger.With("a", args[0], "b", args[1], "command", "cmp")

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

		result, err := setengine.Query(ctx, views, setengine.Cmp, cfg, nil)
		if err != nil {
			log.Error("compare failed", "error", err)
			return err
		}

		diffs := 0
		for _, e := range result.CmpEntries {
			if e.Status == setengine.CmpIdentical {
				continue
			}
			diffs++
			if _, err := fmt.Fprintf(c.OutOrStdout(), "%s: %s\n", e.Path, statusString(e.Status)); err != nil {
				return err
			}
		}

		log.Info("compare completed", "paths", len(result.CmpEntries), "differences", diffs)
		if diffs == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no differences")
		}
		return err
	},
}

func statusString(s setengine.CmpStatus) string {
	switch s {
	case setengine.CmpDifferent:
		return "different"
	case setengine.CmpMissingOnFirst:
		return "missing on a"
	case setengine.CmpMissingOnSecond:
		return "missing on b"
	case setengine.CmpTypeMismatch:
		return "type mismatch"
	default:
		return "identical"
	}
}

func init() {
	cmd.Register(cmpCmd)
}
