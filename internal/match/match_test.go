package match

import (
	"context"
	"testing"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/treeview"
)

type fakeView struct {
	entries []treeview.Entry
}

func (f fakeView) Root() string             { return "fake" }
func (f fakeView) Entries() ([]treeview.Entry, error) { return f.entries, nil }
func (f fakeView) Dirs() []string           { return nil }
func (f fakeView) Resolve(id fileid.FileID) (treeview.Entry, bool) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, true
		}
	}
	return treeview.Entry{}, false
}

func entry(n int, size int64, hash uint64, paths ...string) treeview.Entry {
	return treeview.Entry{ID: fileid.Synthetic(uint64(n)), Size: size, Hash: hash, HashValid: true, Paths: paths}
}

func TestMatchPrefersPathOverlap(t *testing.T) {
	source := fakeView{entries: []treeview.Entry{
		entry(1, 10, 100, "a.txt"),
		entry(2, 10, 100, "b.txt"),
	}}
	target := fakeView{entries: []treeview.Entry{
		entry(3, 10, 100, "b.txt"),
		entry(4, 10, 100, "z.txt"),
	}}

	result, err := Match(context.Background(), source, target, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Matched) != 2 {
		t.Fatalf("Matched = %d pairs, want 2", len(result.Matched))
	}

	var overlapPair *Pair
	for i := range result.Matched {
		if result.Matched[i].Target.MinPath() == "b.txt" {
			overlapPair = &result.Matched[i]
		}
	}
	if overlapPair == nil || overlapPair.Source.MinPath() != "b.txt" {
		t.Fatalf("expected the path-overlapping target/source to be paired, got %+v", result.Matched)
	}
}

func TestMatchUnmatchedResiduals(t *testing.T) {
	source := fakeView{entries: []treeview.Entry{entry(1, 10, 1, "only-source.txt")}}
	target := fakeView{entries: []treeview.Entry{entry(2, 20, 2, "only-target.txt")}}

	result, err := Match(context.Background(), source, target, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Matched) != 0 {
		t.Errorf("Matched = %v, want none", result.Matched)
	}
	if len(result.UnmatchedSource) != 1 || result.UnmatchedSource[0].MinPath() != "only-source.txt" {
		t.Errorf("UnmatchedSource = %v", result.UnmatchedSource)
	}
	if len(result.UnmatchedTarget) != 1 || result.UnmatchedTarget[0].MinPath() != "only-target.txt" {
		t.Errorf("UnmatchedTarget = %v", result.UnmatchedTarget)
	}
}

func TestMatchSizeOnlyIgnoresHash(t *testing.T) {
	source := fakeView{entries: []treeview.Entry{entry(1, 10, 111, "a.txt")}}
	target := fakeView{entries: []treeview.Entry{entry(2, 10, 222, "b.txt")}}

	cfg := config.Default()
	cfg.SizeOnly = true
	result, err := Match(context.Background(), source, target, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Matched) != 1 {
		t.Fatalf("Matched = %d, want 1 under size-only equivalence", len(result.Matched))
	}
}

func TestMatchDeterministicLeftoverPairing(t *testing.T) {
	source := fakeView{entries: []treeview.Entry{
		entry(1, 10, 1, "s-b.txt"),
		entry(2, 10, 1, "s-a.txt"),
	}}
	target := fakeView{entries: []treeview.Entry{
		entry(3, 10, 1, "t-b.txt"),
		entry(4, 10, 1, "t-a.txt"),
	}}

	result, err := Match(context.Background(), source, target, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Matched) != 2 {
		t.Fatalf("Matched = %d, want 2", len(result.Matched))
	}
	for _, p := range result.Matched {
		if p.Target.MinPath() == "t-a.txt" && p.Source.MinPath() != "s-a.txt" {
			t.Errorf("lexicographic-minimum pairing broke: %+v", p)
		}
	}
}
