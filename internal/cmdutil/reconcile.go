package cmdutil

import (
	"context"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/match"
	"github.com/ambrevar/hsync/internal/pipeline"
	"github.com/ambrevar/hsync/internal/plan"
	"github.com/ambrevar/hsync/internal/treeview"
)

// OpenAndHashAll opens every location (directory or offline database) and,
// for each online tree, runs the hashing pipeline so the set-engine query
// that follows sees fresh hashes. Used by cmp/fdupes/onall/onfirstonly/
// onlastonly/search, which all query N already-hashed trees.
func OpenAndHashAll(ctx context.Context, locs []string, cfg config.Config) ([]treeview.View, []*Tree, error) {
	views := make([]treeview.View, 0, len(locs))
	trees := make([]*Tree, 0, len(locs))
	for _, loc := range locs {
		t, err := OpenLocation(loc, cfg)
		if err != nil {
			CloseAll(trees)
			return nil, nil, err
		}
		if err := hashIfOnline(ctx, t, cfg); err != nil {
			CloseAll(append(trees, t))
			return nil, nil, err
		}
		trees = append(trees, t)
		views = append(views, t.View)
	}
	return views, trees, nil
}

// CloseAll releases every tree's database handle.
func CloseAll(trees []*Tree) {
	for _, t := range trees {
		_ = t.Close()
	}
}

// ReconcileResult summarizes one sync/rsync/syncr invocation for the
// calling verb's own output formatting.
type ReconcileResult struct {
	Steps           []plan.Step
	Matched         int
	UnmatchedSource int
	UnmatchedTarget int
}

// Reconcile runs Modules D, E, and F end to end over two locations: it
// ensures both trees have fresh cached hashes, computes the match
// (Module E), builds the rename/link/unlink plan (Module F), and executes
// it (or elides execution when dryRun is set). sync, rsync, and syncr all
// funnel through this one engine-level entry point rather than each
// re-deriving it.
func Reconcile(ctx context.Context, sourceLoc, targetLoc string, cfg config.Config, dryRun bool) (ReconcileResult, error) {
	srcTree, err := OpenLocation(sourceLoc, cfg)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer srcTree.Close()

	tgtTree, err := OpenLocation(targetLoc, cfg)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer tgtTree.Close()

	if err := hashIfOnline(ctx, srcTree, cfg); err != nil {
		return ReconcileResult{}, err
	}
	if err := hashIfOnline(ctx, tgtTree, cfg); err != nil {
		return ReconcileResult{}, err
	}

	result, err := match.Match(ctx, srcTree.View, tgtTree.View, cfg)
	if err != nil {
		return ReconcileResult{}, err
	}

	p, err := plan.Build(result, tgtTree.View)
	if err != nil {
		return ReconcileResult{}, err
	}

	if err := p.Execute(ctx, dryRun); err != nil {
		return ReconcileResult{}, err
	}

	return ReconcileResult{
		Steps:           p.Steps(),
		Matched:         len(result.Matched),
		UnmatchedSource: len(result.UnmatchedSource),
		UnmatchedTarget: len(result.UnmatchedTarget),
	}, nil
}

func hashIfOnline(ctx context.Context, t *Tree, cfg config.Config) error {
	online, ok := t.View.(*treeview.OnlineView)
	if !ok {
		return nil
	}
	_, err := pipeline.Run(ctx, online, t.DB, cfg, false)
	return err
}
