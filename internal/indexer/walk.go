package indexer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
	"asset-preview/internal/workers"
)

// ParallelWalkerConfig configures the parallel library walker
type ParallelWalkerConfig struct {
	// NumWorkers classify files concurrently. Classification stats and
	// sniffs every candidate, which dominates on network shares.
	NumWorkers int
	// BatchSize is how many assets are recorded between short pauses.
	BatchSize int
	// ChannelBuffer bounds the paths queued for classification.
	ChannelBuffer int
	// SkipHidden skips dot files and directories.
	SkipHidden bool
}

// DefaultParallelWalkerConfig sizes the walker from INDEX_WORKERS.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.Indexer.Size(),
		BatchSize:     200,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// walkCounts are the tallies of one walk.
type walkCounts struct {
	files   atomic.Int64
	assets  atomic.Int64
	folders atomic.Int64
	errors  atomic.Int64
}

// ParallelWalker walks the library on one goroutine and classifies the
// files it finds on NumWorkers others.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string
	ctx    context.Context
	cancel context.CancelFunc
	counts walkCounts
}

// NewParallelWalker creates a walker rooted at root. Cancelling ctx stops
// the walk.
func NewParallelWalker(ctx context.Context, root string, config ParallelWalkerConfig) *ParallelWalker {
	config.NumWorkers = max(config.NumWorkers, 1)
	ctx, cancel := context.WithCancel(ctx)
	return &ParallelWalker{config: config, root: root, ctx: ctx, cancel: cancel}
}

// Walk returns every asset under the root, in no particular order. A
// cancelled walk returns the context's error.
func (pw *ParallelWalker) Walk() ([]assets.AssetRef, error) {
	defer pw.cancel()
	start := time.Now()
	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))

	var (
		mu    sync.Mutex
		found []assets.AssetRef
		wg    sync.WaitGroup
	)
	paths := make(chan string, pw.config.ChannelBuffer)
	for range pw.config.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if pw.ctx.Err() != nil {
					continue
				}
				pw.counts.files.Add(1)
				ref, ok, err := classifyFile(path)
				switch {
				case err != nil:
					pw.counts.errors.Add(1)
					logging.Debug("Error classifying %s: %v", path, err)
				case ok:
					pw.counts.assets.Add(1)
					mu.Lock()
					found = append(found, ref)
					mu.Unlock()
				}
			}
		}()
	}

	err := walkLibrary(pw.ctx, pw.root, pw.config.SkipHidden, &pw.counts, func(path string) error {
		select {
		case paths <- path:
			return nil
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
	})
	close(paths)
	wg.Wait()

	logging.Info("Parallel walk complete: %d assets in %d files, %d folders in %v (%d workers, %d errors)",
		pw.counts.assets.Load(), pw.counts.files.Load(), pw.counts.folders.Load(),
		time.Since(start), pw.config.NumWorkers, pw.counts.errors.Load())

	if err == nil || errors.Is(err, fs.SkipAll) {
		err = pw.ctx.Err()
	}
	return found, err
}

// Stop cancels the walk.
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns the walk's tallies so far.
func (pw *ParallelWalker) Stats() (found, folders, errors int64) {
	return pw.counts.assets.Load(), pw.counts.folders.Load(), pw.counts.errors.Load()
}

// walkLibrary calls visit for every regular file under root, counting
// folders into counts. Unreadable entries are logged and skipped.
func walkLibrary(ctx context.Context, root string, skipHidden bool, counts *walkCounts, visit func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if path == root {
			return nil
		}
		if skipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			counts.folders.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return visit(path)
	})
}

// sequentialWalk classifies files on the walking goroutine, for slow
// shares where concurrent stats hurt.
func sequentialWalk(ctx context.Context, root string, skipHidden bool, counts *walkCounts) ([]assets.AssetRef, error) {
	metrics.IndexerParallelWorkers.Set(1)

	var found []assets.AssetRef
	err := walkLibrary(ctx, root, skipHidden, counts, func(path string) error {
		counts.files.Add(1)
		ref, ok, err := classifyFile(path)
		switch {
		case err != nil:
			counts.errors.Add(1)
			logging.Debug("Error classifying %s: %v", path, err)
		case ok:
			counts.assets.Add(1)
			found = append(found, ref)
		}
		return nil
	})
	if err == nil || errors.Is(err, fs.SkipAll) {
		err = ctx.Err()
	}
	return found, err
}

// classifyFile builds a reference for path when it is an asset. Preview
// sidecars and textures classify as images and are skipped.
func classifyFile(path string) (assets.AssetRef, bool, error) {
	if !assets.Classify(path).IsAsset() {
		return assets.AssetRef{}, false, nil
	}
	ref, err := assets.NewRef(path)
	if err != nil {
		return assets.AssetRef{}, false, err
	}
	return ref, true, nil
}
