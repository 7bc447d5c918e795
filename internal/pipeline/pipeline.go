// Package pipeline drives the hashing pass over an online tree: a foreman
// walks the tree and applies the filter/size cap, a bounded pool of
// workers hashes stale files, and a single committer goroutine is the
// only writer to the hash database (Module D). The worker-pool/semaphore
// shape follows the teacher's internal/merkle.Engine, generalized from
// "compute one Merkle digest" to "fill a database with per-file hashes".
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/fileid"
	"github.com/ambrevar/hsync/internal/hash"
	"github.com/ambrevar/hsync/internal/hashdb"
	"github.com/ambrevar/hsync/internal/herrors"
	"github.com/ambrevar/hsync/internal/logger"
	"github.com/ambrevar/hsync/internal/treeview"
)

// Stats summarizes one Run.
type Stats struct {
	Scanned int
	Hashed  int
	Skipped int
	Bytes   int64
}

type job struct {
	id    fileid.FileID
	path  string
	size  int64
	mtime int64
}

type result struct {
	id    fileid.FileID
	size  int64
	mtime int64
	hash  uint64
}

// Run walks view, hashing every file whose cached entry is missing or
// stale (per hashdb.Fresh, unless forceRehash is set) and writing fresh
// entries back through db. Workers check ctx.Err() between files, never
// mid-file; on cancellation Run returns the partial Stats together with
// an herrors.OperationCancelled error wrapping ctx.Err().
func Run(ctx context.Context, view *treeview.OnlineView, db *hashdb.DB, cfg config.Config, forceRehash bool) (Stats, error) {
	hasher, err := openHasher(cfg)
	if err != nil {
		return Stats{}, err
	}

	entries, err := view.Entries()
	if err != nil {
		return Stats{}, err
	}

	workers := cfg.ResolvedWorkers(runtime.NumCPU())
	jobs := make(chan job, workers)
	results := make(chan result, workers)

	var stats Stats
	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.Default(int64(len(entries)), "hashing")
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				h, err := hashFile(ctx, hasher, filepath.Join(view.Root(), j.path))
				if err != nil {
					logger.Warn("failed to hash file", "path", j.path, "error", err)
					continue
				}
				select {
				case results <- result{id: j.id, size: j.size, mtime: j.mtime, hash: h}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	committerDone := make(chan struct{})
	go func() {
		defer close(committerDone)
		for r := range results {
			if err := db.Upsert(r.id, r.size, r.mtime, r.hash); err != nil {
				logger.Warn("failed to write hash entry", "error", err)
				continue
			}
			stats.Hashed++
			stats.Bytes += r.size
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}()

feed:
	for _, e := range entries {
		select {
		case <-ctx.Done():
			break feed
		default:
		}
		stats.Scanned++

		if !forceRehash {
			if fresh, err := db.Fresh(e.ID, e.Size, e.Mtime); err == nil && fresh {
				stats.Skipped++
				if bar != nil {
					_ = bar.Add(1)
				}
				continue
			}
		}
		if cfg.MaxSize > 0 && e.Size > cfg.MaxSize {
			stats.Skipped++
			continue
		}

		select {
		case jobs <- job{id: e.ID, path: e.MinPath(), size: e.Size, mtime: e.Mtime}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	<-committerDone

	if ctx.Err() != nil {
		return stats, herrors.Wrap(herrors.OperationCancelled, view.Root(), ctx.Err())
	}
	return stats, nil
}

func hashFile(ctx context.Context, h hash.Hasher, path string) (uint64, error) {
	if ext, ok := h.(hash.External); ok {
		return ext.SumPath(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, herrors.Wrap(herrors.FileUnreadable, path, err)
	}
	defer f.Close()

	sum, err := h.Sum(f)
	if err != nil {
		return 0, herrors.Wrap(herrors.FileUnreadable, path, err)
	}
	return sum, nil
}

func openHasher(cfg config.Config) (hash.Hasher, error) {
	if cfg.HasherExec != "" {
		return hash.NewExternal(cfg.HasherExec, 64), nil
	}
	return hash.Open(cfg.HasherKind)
}
