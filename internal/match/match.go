// Package match implements the reconciliation algorithm (Module E): a
// partial injective matching between a source and a target tree view,
// grouped by content key and preference-ordered to minimize the number
// of rename operations the plan builder will need to emit. The sharded
// concurrent-map grouping technique is grounded on egibs-reconcile's
// Diff, adapted from path-rename detection to file-id/content-key
// matching.
package match

import (
	"context"
	"sort"
	"sync"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/treeview"
)

const (
	numShards = 1 << shardBits
	shardBits = 8
	shardMask = numShards - 1
)

// Key is the content key files are grouped by: (size, hash), or size
// alone in size-only mode (hash left zero and ignored).
type Key struct {
	Size int64
	Hash uint64
}

// Pair is one resolved match between a target and a source file-id.
type Pair struct {
	Target treeview.Entry
	Source treeview.Entry
}

// Result is the outcome of one Match call.
type Result struct {
	Matched         []Pair
	UnmatchedSource []treeview.Entry
	UnmatchedTarget []treeview.Entry
}

type shard struct {
	sync.Mutex
	groups map[Key][]treeview.Entry
}

// Match groups source and target entries by content key and resolves a
// partial injective matching per spec.md §4.2 steps 1-4.
func Match(ctx context.Context, source, target treeview.View, cfg config.Config) (Result, error) {
	srcEntries, err := source.Entries()
	if err != nil {
		return Result{}, err
	}
	tgtEntries, err := target.Entries()
	if err != nil {
		return Result{}, err
	}

	srcShards := groupByKey(srcEntries, cfg.SizeOnly)
	tgtShards := groupByKey(tgtEntries, cfg.SizeOnly)

	var result Result
	seen := map[Key]bool{}

	for i := range srcShards {
		s := &srcShards[i]
		for k := range s.groups {
			if seen[k] {
				continue
			}
			seen[k] = true

			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			srcList := keyEntries(srcShards, k)
			tgtList := keyEntries(tgtShards, k)
			pairs, leftoverSrc, leftoverTgt := resolveKey(srcList, tgtList)

			result.Matched = append(result.Matched, pairs...)
			result.UnmatchedSource = append(result.UnmatchedSource, leftoverSrc...)
			result.UnmatchedTarget = append(result.UnmatchedTarget, leftoverTgt...)
		}
	}

	// Target-only keys: every target entry is unmatched.
	for i := range tgtShards {
		s := &tgtShards[i]
		for k, entries := range s.groups {
			if seen[k] {
				continue
			}
			seen[k] = true
			result.UnmatchedTarget = append(result.UnmatchedTarget, entries...)
		}
	}

	sort.Slice(result.Matched, func(i, j int) bool {
		return result.Matched[i].Target.MinPath() < result.Matched[j].Target.MinPath()
	})
	sort.Slice(result.UnmatchedSource, func(i, j int) bool {
		return result.UnmatchedSource[i].MinPath() < result.UnmatchedSource[j].MinPath()
	})
	sort.Slice(result.UnmatchedTarget, func(i, j int) bool {
		return result.UnmatchedTarget[i].MinPath() < result.UnmatchedTarget[j].MinPath()
	})

	return result, nil
}

func keyOf(e treeview.Entry, sizeOnly bool) Key {
	if sizeOnly {
		return Key{Size: e.Size}
	}
	return Key{Size: e.Size, Hash: e.Hash}
}

// groupByKey partitions entries into shards keyed by key.Hash&shardMask
// (or key.Size&shardMask when the key's hash is 0, as in size-only
// mode), built concurrently with one goroutine per 4096-entry chunk
// writing through per-shard mutexes to avoid a single contended map,
// mirroring egibs-reconcile's sharded-mutex Diff.
func groupByKey(entries []treeview.Entry, sizeOnly bool) []shard {
	shards := make([]shard, numShards)
	for i := range shards {
		shards[i].groups = make(map[Key][]treeview.Entry)
	}

	const chunk = 4096
	var wg sync.WaitGroup
	for low := 0; low < len(entries); low += chunk {
		high := low + chunk
		if high > len(entries) {
			high = len(entries)
		}
		wg.Add(1)
		go func(low, high int) {
			defer wg.Done()
			for i := low; i < high; i++ {
				k := keyOf(entries[i], sizeOnly)
				idx := shardIndex(k)
				s := &shards[idx]
				s.Lock()
				s.groups[k] = append(s.groups[k], entries[i])
				s.Unlock()
			}
		}(low, high)
	}
	wg.Wait()
	return shards
}

func shardIndex(k Key) uint64 {
	if k.Hash != 0 {
		return k.Hash & shardMask
	}
	return uint64(k.Size) & shardMask
}

func keyEntries(shards []shard, k Key) []treeview.Entry {
	s := &shards[shardIndex(k)]
	s.Lock()
	defer s.Unlock()
	return s.groups[k]
}

// resolveKey pairs the source and target entries that share one content
// key, per spec.md §4.2 steps 2-4: preference for path overlap first,
// then deterministic lexicographic-minimum-path pairing for the rest.
func resolveKey(srcList, tgtList []treeview.Entry) (pairs []Pair, leftoverSrc, leftoverTgt []treeview.Entry) {
	srcUsed := make([]bool, len(srcList))
	tgtUsed := make([]bool, len(tgtList))

	type candidate struct {
		srcIdx, tgtIdx int
		overlap        int
		minPath        string
	}
	var candidates []candidate
	for ti, t := range tgtList {
		tPaths := pathSet(t)
		for si, s := range srcList {
			overlap := countOverlap(tPaths, s.Paths)
			if overlap == 0 {
				continue
			}
			min := s.MinPath()
			if t.MinPath() < min {
				min = t.MinPath()
			}
			candidates = append(candidates, candidate{si, ti, overlap, min})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].minPath < candidates[j].minPath
	})
	for _, c := range candidates {
		if srcUsed[c.srcIdx] || tgtUsed[c.tgtIdx] {
			continue
		}
		srcUsed[c.srcIdx] = true
		tgtUsed[c.tgtIdx] = true
		pairs = append(pairs, Pair{Target: tgtList[c.tgtIdx], Source: srcList[c.srcIdx]})
	}

	remainingSrc := remaining(srcList, srcUsed)
	remainingTgt := remaining(tgtList, tgtUsed)
	sort.Slice(remainingSrc, func(i, j int) bool { return remainingSrc[i].MinPath() < remainingSrc[j].MinPath() })
	sort.Slice(remainingTgt, func(i, j int) bool { return remainingTgt[i].MinPath() < remainingTgt[j].MinPath() })

	n := len(remainingSrc)
	if len(remainingTgt) < n {
		n = len(remainingTgt)
	}
	for i := 0; i < n; i++ {
		pairs = append(pairs, Pair{Target: remainingTgt[i], Source: remainingSrc[i]})
	}
	leftoverSrc = remainingSrc[n:]
	leftoverTgt = remainingTgt[n:]
	return pairs, leftoverSrc, leftoverTgt
}

func pathSet(e treeview.Entry) map[string]struct{} {
	m := make(map[string]struct{}, len(e.Paths))
	for _, p := range e.Paths {
		m[p] = struct{}{}
	}
	return m
}

func countOverlap(a map[string]struct{}, paths []string) int {
	n := 0
	for _, p := range paths {
		if _, ok := a[p]; ok {
			n++
		}
	}
	return n
}

func remaining(entries []treeview.Entry, used []bool) []treeview.Entry {
	var out []treeview.Entry
	for i, e := range entries {
		if !used[i] {
			out = append(out, e)
		}
	}
	return out
}
