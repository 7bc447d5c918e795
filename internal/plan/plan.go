// Package plan builds and executes the ordered mutation plan that
// brings a target tree's path structure into agreement with a match
// result (Module F). Cycle-breaking follows Ambrevar-hsync's
// processRenames: chains of blocked renames are walked to their free
// end and executed backward; cycles are broken with one stash rename,
// generalized here from Ambrevar's single 2-cycle case to arbitrary
// chain length using google/uuid for the stash pathname.
package plan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ambrevar/hsync/internal/herrors"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/match"
	"github.com/ambrevar/hsync/internal/treeview"
)

// Step is one filesystem mutation the executor performs in order.
type Step interface {
	String() string
	apply(root string) error
}

type MkdirStep struct{ Path string }

func (s MkdirStep) String() string    { return "mkdir " + s.Path }
func (s MkdirStep) apply(root string) error {
	return os.MkdirAll(filepath.Join(root, s.Path), 0o777)
}

type RenameStep struct{ From, To string }

func (s RenameStep) String() string { return "rename " + s.From + " -> " + s.To }
func (s RenameStep) apply(root string) error {
	return os.Rename(filepath.Join(root, s.From), filepath.Join(root, s.To))
}

type LinkStep struct {
	// ExistingPath is any current path to the file-id; NewPath is the
	// path to create as an additional hard link to it.
	ExistingPath, NewPath string
}

func (s LinkStep) String() string { return "link " + s.NewPath + " (= " + s.ExistingPath + ")" }
func (s LinkStep) apply(root string) error {
	return os.Link(filepath.Join(root, s.ExistingPath), filepath.Join(root, s.NewPath))
}

type UnlinkStep struct{ Path string }

func (s UnlinkStep) String() string    { return "unlink " + s.Path }
func (s UnlinkStep) apply(root string) error { return os.Remove(filepath.Join(root, s.Path)) }

type RmdirStep struct{ Path string }

func (s RmdirStep) String() string    { return "rmdir " + s.Path }
func (s RmdirStep) apply(root string) error { return os.Remove(filepath.Join(root, s.Path)) }

// Plan is the ordered, executable result of Build.
type Plan struct {
	root  string
	steps []Step
}

func (p *Plan) Steps() []Step { return p.steps }

// Build computes the ordered mutation plan needed to make target agree
// with result, raising TargetPathTypeConflict (P5) before any mutation
// if a planned directory collides with an existing non-directory path.
func Build(result match.Result, target treeview.View) (*Plan, error) {
	b := &builder{
		root:       target.Root(),
		dirExists:  map[string]bool{},
		fileExists: map[string]bool{},
		foldIndex:  map[string]string{},
	}

	for _, d := range target.Dirs() {
		b.dirExists[d] = true
		b.foldIndex[strings.ToLower(d)] = d
	}
	entries, err := target.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		for _, p := range e.Paths {
			b.fileExists[p] = true
			b.foldIndex[strings.ToLower(p)] = p
		}
	}

	// Per matched pair: to_add / to_remove / stay (P4 case-folding
	// applied). stay holds the target paths that already agree with the
	// source (P_t ∩ P_s) and are left untouched; it's the anchor of last
	// resort for extra links when no rename supplies one (toRemove empty).
	type pairPlan struct {
		toAdd, toRemove, stay []string
	}
	var pairs []pairPlan
	for _, pr := range result.Matched {
		tPaths := stringSet(pr.Target.Paths)
		sPaths := stringSet(pr.Source.Paths)
		var toAdd, toRemove, stay []string
		for p := range sPaths {
			if !b.caseEqual(tPaths, p) {
				toAdd = append(toAdd, p)
			}
		}
		for p := range tPaths {
			if b.caseEqual(sPaths, p) {
				stay = append(stay, p)
			} else {
				toRemove = append(toRemove, p)
			}
		}
		sort.Strings(toAdd)
		sort.Strings(toRemove)
		sort.Strings(stay)
		pairs = append(pairs, pairPlan{toAdd: toAdd, toRemove: toRemove, stay: stay})
	}

	// P5: a planned directory must not collide with an existing file.
	for _, pp := range pairs {
		for _, add := range pp.toAdd {
			for d := parentDir(add); d != ""; d = parentDir(d) {
				if b.fileExists[d] {
					return nil, herrors.Wrap(herrors.TargetPathTypeConflict, d, nil)
				}
			}
		}
	}

	// Collect mkdir steps for every new parent directory, deepest-first
	// within each path but directories are deduped and later sorted so
	// that a parent is always created before its child (P3).
	needDirs := map[string]bool{}
	for _, pp := range pairs {
		for _, add := range pp.toAdd {
			for d := parentDir(add); d != "" && d != "."; d = parentDir(d) {
				if !b.dirExists[d] {
					needDirs[d] = true
				}
			}
		}
	}
	var dirList []string
	for d := range needDirs {
		dirList = append(dirList, d)
	}
	sort.Slice(dirList, func(i, j int) bool { return len(strings.Split(dirList[i], "/")) < len(strings.Split(dirList[j], "/")) })
	for _, d := range dirList {
		b.steps = append(b.steps, MkdirStep{Path: d})
		b.dirExists[d] = true
	}

	// Build a path-level move graph: within each pair, pair off
	// to_remove/to_add 1:1 as renames (cheapest single op); leftover
	// to_add become links from another surviving path, leftover
	// to_remove become unlinks.
	moves := map[string]string{} // oldpath -> newpath
	var extraLinks []LinkStep
	var extraUnlinks []string

	for _, pp := range pairs {
		n := min(len(pp.toAdd), len(pp.toRemove))
		for i := 0; i < n; i++ {
			moves[pp.toRemove[i]] = pp.toAdd[i]
		}
		if len(pp.toAdd) > n {
			// Need additional hard links; source them from whichever
			// path already carries the content after the renames, or
			// from a path that never moved (stay) when no rename ran.
			var anchor string
			switch {
			case n > 0:
				anchor = pp.toAdd[n-1]
			case len(pp.stay) > 0:
				anchor = pp.stay[0]
			}
			if anchor == "" {
				// No rename and no surviving path: the pair's target
				// side is empty, which Match should never produce for a
				// matched pair. Skip rather than link from a
				// not-yet-existing path.
				logger.Warn("matched pair has additions but no rename or stay path to link from", "paths", pp.toAdd[n:])
			} else {
				for _, add := range pp.toAdd[n:] {
					extraLinks = append(extraLinks, LinkStep{ExistingPath: anchor, NewPath: add})
				}
			}
		}
		if len(pp.toRemove) > n {
			extraUnlinks = append(extraUnlinks, pp.toRemove[n:]...)
		}
	}

	// Unmatched target files are removed entirely (every remaining path
	// unlinked); this never drops a matched file's last link, since
	// these file-ids have no match at all (P1 only binds matched pairs).
	var danglingUnlinks []string
	for _, e := range result.UnmatchedTarget {
		danglingUnlinks = append(danglingUnlinks, e.Paths...)
	}

	// P2: a rename/link destination must never land on a path that's
	// still occupied. extraUnlinks and danglingUnlinks are never a
	// source in moves (they're leftover toRemove entries and entirely
	// unmatched files respectively), so resolveMoves's chain/cycle
	// walker has no way to know it must vacate them first. Since
	// nothing downstream reads from a path being removed this way,
	// freeing them before any rename or link step is always safe and
	// closes that hazard.
	freeing := append(append([]string{}, extraUnlinks...), danglingUnlinks...)
	sort.Strings(freeing)
	for _, u := range freeing {
		b.steps = append(b.steps, UnlinkStep{Path: u})
	}

	// resolveMoves empties moves; keep the destinations for the rmdir pass.
	movedTo := make(map[string]string, len(moves))
	for old, newpath := range moves {
		movedTo[old] = newpath
	}
	b.steps = append(b.steps, resolveMoves(moves)...)

	sort.Slice(extraLinks, func(i, j int) bool { return extraLinks[i].NewPath < extraLinks[j].NewPath })
	for _, l := range extraLinks {
		b.steps = append(b.steps, l)
	}

	// rmdir: directories that existed on the target and now have
	// nothing left under them. Evaluated after all removals, deepest
	// first (P3).
	rmCandidates := b.directoriesEmptiedBy(append(append([]string{}, danglingUnlinks...), extraUnlinks...), movedTo)
	sort.Slice(rmCandidates, func(i, j int) bool {
		return len(strings.Split(rmCandidates[i], "/")) > len(strings.Split(rmCandidates[j], "/"))
	})
	for _, d := range rmCandidates {
		b.steps = append(b.steps, RmdirStep{Path: d})
	}

	return &Plan{root: b.root, steps: b.steps}, nil
}

type builder struct {
	root       string
	dirExists  map[string]bool
	fileExists map[string]bool
	foldIndex  map[string]string // lowercased path -> canonical path already present on target
	steps      []Step
}

// caseEqual reports whether p is present in set, or differs from a
// member of set only by case (P4: treated as the same path).
func (b *builder) caseEqual(set map[string]struct{}, p string) bool {
	if _, ok := set[p]; ok {
		return true
	}
	lower := strings.ToLower(p)
	for q := range set {
		if strings.ToLower(q) == lower {
			return true
		}
	}
	return false
}

// directoriesEmptiedBy is an approximation: an existing directory is a
// candidate for rmdir if at least one removed path lies under it and
// none of the move destinations land back under it. It neither checks
// that every file under the directory was removed nor looks at the
// live filesystem (the plan executes later), so Plan.Execute treats
// rmdir failures (ENOTEMPTY) as non-fatal.
func (b *builder) directoriesEmptiedBy(removedPaths []string, moves map[string]string) []string {
	touched := map[string]bool{}
	for _, p := range removedPaths {
		for d := parentDir(p); d != "" && d != "."; d = parentDir(d) {
			touched[d] = true
		}
	}
	stillUsed := map[string]bool{}
	for _, newpath := range moves {
		for d := parentDir(newpath); d != "" && d != "."; d = parentDir(d) {
			stillUsed[d] = true
		}
	}
	var out []string
	for d := range touched {
		if !stillUsed[d] && b.dirExists[d] {
			out = append(out, d)
		}
	}
	return out
}

func parentDir(p string) string {
	p = filepath.ToSlash(p)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

func stringSet(paths []string) map[string]struct{} {
	m := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		m[p] = struct{}{}
	}
	return m
}

// resolveMoves orders a set of path renames so that every destination
// is vacated before it's written into (P2), generalizing
// Ambrevar-hsync's processRenames from a single 2-cycle to arbitrary
// chains and cycles of any length. moves is consumed (emptied) by this
// call.
func resolveMoves(moves map[string]string) []Step {
	var steps []Step
	reverse := make(map[string]string, len(moves))
	for old, new := range moves {
		reverse[new] = old
	}

	// Stable iteration order for determinism.
	var oldpaths []string
	for old := range moves {
		oldpaths = append(oldpaths, old)
	}
	sort.Strings(oldpaths)

	for _, start := range oldpaths {
		newpath, ok := moves[start]
		if !ok {
			continue // already consumed as part of an earlier chain/cycle
		}
		oldpath := start
		cycleMarker := oldpath

		// Walk forward to the free end of the chain, or back to
		// cycleMarker if this is a cycle.
		for newpath != cycleMarker {
			next, ok := moves[newpath]
			if !ok {
				break
			}
			oldpath = newpath
			newpath = next
		}

		if newpath == cycleMarker {
			// oldpath is the last node reached by the forward walk, the
			// one whose move target closes the cycle back to
			// cycleMarker; stashing its current content is what frees a
			// path for the rest of the chain to complete into.
			stash := ".hsync-stash-" + uuid.New().String()
			steps = append(steps, RenameStep{From: oldpath, To: stash})
			logger.Debug("breaking rename cycle", "at", oldpath, "stash", stash)

			reverse[cycleMarker] = stash
			delete(moves, oldpath)
			newpath = oldpath
			oldpath = reverse[oldpath]
		}

		// Walk the chain backward from its free end, executing renames
		// so that every destination is vacated by the time it's used.
		for oldpath != "" {
			steps = append(steps, RenameStep{From: oldpath, To: newpath})
			delete(moves, oldpath)
			newpath = oldpath
			oldpath = reverse[oldpath]
		}
	}

	return steps
}

// Execute performs every step in order against the plan's root. When
// dryRun is true, steps are logged but no filesystem call is made. On a
// mid-plan OS error, Execute returns herrors.PartialPlanFailure without
// attempting rollback (rename/link/unlink never leaves the target's
// file data in an inconsistent state, per spec.md §4.3).
func (p *Plan) Execute(ctx context.Context, dryRun bool) error {
	var done []string
	for i, step := range p.steps {
		if ctx.Err() != nil {
			return &herrors.PartialPlanFailure{
				Done:      done,
				Remaining: stepStrings(p.steps[i:]),
				Cause:     ctx.Err(),
			}
		}

		logger.Info("plan step", "op", step.String(), "dry_run", dryRun)
		if dryRun {
			done = append(done, step.String())
			continue
		}

		if err := step.apply(p.root); err != nil {
			if _, ok := step.(RmdirStep); ok {
				// A non-empty or already-gone directory is not fatal.
				logger.Debug("rmdir skipped", "path", step.String(), "error", err)
				done = append(done, step.String())
				continue
			}
			return &herrors.PartialPlanFailure{
				Done:      done,
				Remaining: stepStrings(p.steps[i:]),
				Cause:     err,
			}
		}
		done = append(done, step.String())
	}
	return nil
}

func stepStrings(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.String()
	}
	return out
}
