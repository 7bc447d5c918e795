// Package check provides the "check" command: a bitrot check. Every
// cached entry is rehashed unconditionally and compared against its
// stored hash, without writing the new hash back, since a bitrot hit must
// not erase the evidence that on-disk content diverged from the last
// trusted update.
package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/internal/cmdutil"
	"github.com/ambrevar/hsync/internal/hash"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/treeview"
)

var checkCmd = &cobra.Command{
	Use:   "check <dir>",
	Short: "Rehash every cached entry and report mismatches against the stored hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		dir := args[0]
		log := logger.With("path", dir, "command", "check")

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
			return fmt.Errorf("check requires a directory, not an offline database")
		}

		h, err := hash.Open(cfg.HasherKind)
		if err != nil {
			return err
		}

		entries, err := online.Entries()
		if err != nil {
			return err
		}
		cached, err := tree.DB.LoadAllEntries()
		if err != nil {
			return err
		}

		checked := 0
		mismatches := 0
		for _, e := range entries {
			stored, ok := cached[e.ID]
			if !ok {
				continue
			}
			checked++
			sum, err := hashOne(context.Background(), h, filepath.Join(dir, e.MinPath()))
			if err != nil {
				log.Warn("rehash failed", "path", e.MinPath(), "error", err)
				continue
			}
			if sum != stored.Hash {
				mismatches++
				if _, err := fmt.Fprintf(c.OutOrStdout(), "%s: mismatch (cached %x, observed %x)\n", e.MinPath(), stored.Hash, sum); err != nil {
					return err
				}
			}
		}

		log.Info("check completed", "checked", checked, "mismatches", mismatches)
		if mismatches == 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), "no bitrot detected")
			return err
		}
		return fmt.Errorf("%d file(s) diverged from their cached hash", mismatches)
	},
}

func hashOne(ctx context.Context, h hash.Hasher, path string) (uint64, error) {
	if ext, ok := h.(hash.External); ok {
		return ext.SumPath(ctx, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return h.Sum(f)
}
