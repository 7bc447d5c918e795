// Package syncr provides the "syncr" command: run sync once per immediate
// subdirectory pair shared by source and target, a recursive-subdir
// convenience built on Modules E and F.
package syncr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/logger"
)

var syncrCmd = &cobra.Command{
	Use:   "syncr <source> <target>",
	Short: "Run sync once per immediate subdirectory shared by source and target",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		source, target := args[0], args[1]
		log := logger.With("source", source, "target", target, "command", "syncr")

		cfg, err := cmdutil.ConfigFromFlags(c)
		if err != nil {
			return err
		}
		process, err := c.Flags().GetBool("process")
		if err != nil {
			return err
		}
		dryRun := !process

		subdirs, err := sharedSubdirs(source, target)
		if err != nil {
			return err
		}

		for _, name := range subdirs {
			src := filepath.Join(source, name)
			dst := filepath.Join(target, name)
			result, err := cmdutil.Reconcile(context.Background(), src, dst, cfg, dryRun)
			if err != nil {
				log.Error("subtree reconcile failed", "subdir", name, "error", err)
				return err
			}
			if _, err := fmt.Fprintf(c.OutOrStdout(), "%s -> %s: %d steps\n", src, dst, len(result.Steps)); err != nil {
				return err
			}
		}

		log.Info("syncr completed", "subdirs", len(subdirs), "dry_run", dryRun)
		return nil
	},
}

// sharedSubdirs returns the sorted names of immediate subdirectories
// present in both source and target.
func sharedSubdirs(source, target string) ([]string, error) {
	srcEntries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}
	tgtNames := make(map[string]bool)
	tgtEntries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	for _, e := range tgtEntries {
		if e.IsDir() {
			tgtNames[e.Name()] = true
		}
	}

	var shared []string
	for _, e := range srcEntries {
		if e.IsDir() && tgtNames[e.Name()] {
			shared = append(shared, e.Name())
		}
	}
	return shared, nil
}

func init() {
	syncrCmd.Flags().BoolP("process", "p", false, "Actually perform the plan instead of a dry run")
	cmd.Register(syncrCmd)
}
