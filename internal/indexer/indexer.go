package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metadata"
	"asset-preview/internal/metrics"
)

const (
	// minAssetsForReady lets a large first index report ready early.
	minAssetsForReady = 100

	// batchDelay yields to requests between recording batches.
	batchDelay = 10 * time.Millisecond

	defaultPollInterval = 30 * time.Second
)

// Library receives the library lifecycle events the indexer derives from
// the walk.
type Library interface {
	OnAssetAdded(ctx context.Context, ref assets.AssetRef) (*metadata.Record, error)
	OnAssetRemoved(ctx context.Context, ref assets.AssetRef) error
}

// Catalog lists what has been recorded so vanished assets can be found.
type Catalog interface {
	ListAssetPaths(ctx context.Context) ([]string, error)
	SetLastIndexRun(ctx context.Context, t time.Time) error
}

// Indexer keeps basic metadata for every asset in the library directory.
type Indexer struct {
	lib           Library
	catalog       Catalog
	libraryDir    string
	indexInterval time.Duration
	pollInterval  time.Duration
	walkConfig    ParallelWalkerConfig
	useParallel   bool
	startTime     time.Time

	onIndexComplete func()

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool

	mu           sync.Mutex
	attempted    bool // the first index finished, successfully or not
	initialErr   error
	lastIndexed  time.Time
	progress     IndexProgress
	indexed      atomic.Int64
	removed      atomic.Int64
	folders      atomic.Int64
	stateMu      sync.RWMutex
	lastSnapshot snapshot
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	AssetsIndexed  int64     `json:"assetsIndexed"`
	FoldersIndexed int64     `json:"foldersIndexed"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	AssetsIndexed     int64          `json:"assetsIndexed"`
	AssetsRemoved     int64          `json:"assetsRemoved"`
	FoldersIndexed    int64          `json:"foldersIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates an Indexer for libraryDir. An indexInterval of zero disables
// periodic full re-indexing.
func New(lib Library, catalog Catalog, libraryDir string, indexInterval time.Duration) *Indexer {
	if abs, err := filepath.Abs(libraryDir); err == nil {
		libraryDir = abs
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		lib:           lib,
		catalog:       catalog,
		libraryDir:    libraryDir,
		indexInterval: indexInterval,
		pollInterval:  defaultPollInterval,
		walkConfig:    DefaultParallelWalkerConfig(),
		useParallel:   true,
		startTime:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetPollInterval sets how often the library is polled for changes. Zero
// disables polling.
func (idx *Indexer) SetPollInterval(interval time.Duration) { idx.pollInterval = interval }

// SetParallelWalking switches between the parallel and sequential walkers.
func (idx *Indexer) SetParallelWalking(enabled bool) { idx.useParallel = enabled }

// SetParallelConfig sets the walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) { idx.walkConfig = config }

// SetOnIndexComplete sets a callback run after every successful index.
func (idx *Indexer) SetOnIndexComplete(callback func()) { idx.onIndexComplete = callback }

// Start runs the initial index in the background, then keeps polling and
// re-indexing until Stop.
func (idx *Indexer) Start() error {
	info, err := os.Stat(idx.libraryDir)
	if err != nil {
		return fmt.Errorf("library directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library directory %s is not a directory", idx.libraryDir)
	}
	go idx.run()
	return nil
}

// run owns the background schedule: the initial index, then change polling
// and periodic re-indexing on one goroutine so the two never overlap.
func (idx *Indexer) run() {
	logging.Info("Starting initial library index in background...")
	if err := idx.Index(idx.ctx); err != nil {
		logging.Error("Initial index error: %v", err)
		idx.mu.Lock()
		idx.initialErr = err
		idx.mu.Unlock()
	}

	poll := tickerOrNil(idx.pollInterval)
	periodic := tickerOrNil(idx.indexInterval)
	defer stopTicker(poll)
	defer stopTicker(periodic)
	if poll != nil {
		logging.Info("Polling library for changes every %v", idx.pollInterval)
	}

	for {
		select {
		case <-tickC(poll):
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting library changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Library changes detected, re-indexing")
				idx.reindex("change-triggered")
			}
		case <-tickC(periodic):
			logging.Debug("Periodic re-index triggered")
			idx.reindex("periodic")
		case <-idx.ctx.Done():
			logging.Info("Library indexer stopped")
			return
		}
	}
}

func tickerOrNil(d time.Duration) *time.Ticker {
	if d <= 0 {
		return nil
	}
	return time.NewTicker(d)
}

func stopTicker(t *time.Ticker) {
	if t != nil {
		t.Stop()
	}
}

// tickC is nil for a nil ticker, which blocks forever in a select.
func tickC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (idx *Indexer) reindex(reason string) {
	if err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("%s re-index failed: %v", reason, err)
	}
}

// Stop cancels the schedule and any walk in progress.
func (idx *Indexer) Stop() {
	idx.cancel()
}

// TriggerIndex starts a re-index in the background.
func (idx *Indexer) TriggerIndex() {
	go idx.reindex("manual")
}

// IsReady reports whether the first index has finished or enough assets
// are already recorded to serve requests.
func (idx *Indexer) IsReady() bool {
	if idx.indexed.Load() >= minAssetsForReady {
		return true
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.attempted
}

// IsIndexing reports whether an index is in progress.
func (idx *Indexer) IsIndexing() bool {
	return idx.running.Load()
}

// LastIndexTime returns when the last successful index finished.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastIndexed
}

// GetProgress returns the progress of the current or last index.
func (idx *Indexer) GetProgress() IndexProgress {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.progress
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	ready := idx.IsReady()
	running := idx.IsIndexing()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	st := HealthStatus{
		Ready:          ready,
		Indexing:       running,
		StartTime:      idx.startTime,
		Uptime:         time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed:    idx.lastIndexed,
		AssetsIndexed:  idx.indexed.Load(),
		AssetsRemoved:  idx.removed.Load(),
		FoldersIndexed: idx.folders.Load(),
	}
	if running {
		p := idx.progress
		st.IndexProgress = &p
	}
	if idx.initialErr != nil {
		st.InitialIndexError = idx.initialErr.Error()
	}
	return st
}

// Index walks the library, records basic metadata for every asset and
// removes the records of assets that are gone. A call made while another
// index runs returns nil at once.
func (idx *Indexer) Index(ctx context.Context) (err error) {
	if !idx.running.CompareAndSwap(false, true) {
		logging.Info("Index already in progress, skipping...")
		return nil
	}
	defer idx.finish()

	metrics.IndexerRunsTotal.Inc()
	start := time.Now()
	logging.Info("Starting library indexing of %s...", idx.libraryDir)
	idx.begin(start)

	defer func() {
		if err != nil {
			metrics.IndexerErrors.Inc()
		}
	}()

	found, err := idx.walk(ctx)
	if err != nil {
		return err
	}
	if err := idx.recordAssets(ctx, found, start); err != nil {
		return err
	}
	if err := idx.removeMissing(ctx, found); err != nil {
		logging.Error("Error removing vanished assets: %v", err)
		metrics.IndexerErrors.Inc()
	}

	idx.complete(ctx, start)
	idx.rememberSnapshot()
	metrics.IndexerLastRunDuration.Set(time.Since(start).Seconds())
	return nil
}

func (idx *Indexer) walk(ctx context.Context) ([]assets.AssetRef, error) {
	var counts *walkCounts
	var found []assets.AssetRef
	var err error
	if idx.useParallel {
		walker := NewParallelWalker(ctx, idx.libraryDir, idx.walkConfig)
		found, err = walker.Walk()
		counts = &walker.counts
	} else {
		logging.Info("Using sequential library walking")
		counts = &walkCounts{}
		found, err = sequentialWalk(ctx, idx.libraryDir, idx.walkConfig.SkipHidden, counts)
	}
	idx.folders.Store(counts.folders.Load())
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", idx.libraryDir, err)
	}
	return found, nil
}

// recordAssets hands every found asset to the library, pausing between
// batches. A failed asset is logged and skipped.
func (idx *Indexer) recordAssets(ctx context.Context, found []assets.AssetRef, start time.Time) error {
	batch := idx.walkConfig.BatchSize
	for i, ref := range found {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := idx.lib.OnAssetAdded(ctx, ref); err != nil {
			logging.Warn("Error recording %s: %v", ref.Path, err)
			metrics.IndexerErrors.Inc()
			continue
		}
		idx.indexed.Add(1)
		metrics.IndexerAssetsProcessed.Inc()

		if batch > 0 && (i+1)%batch == 0 {
			idx.setProgress(start, true)
			time.Sleep(batchDelay)
		}
	}
	idx.setProgress(start, true)
	return nil
}

// removeMissing drops every recorded asset under the library directory
// that the walk did not find.
func (idx *Indexer) removeMissing(ctx context.Context, found []assets.AssetRef) error {
	if idx.catalog == nil {
		return nil
	}
	recorded, err := idx.catalog.ListAssetPaths(ctx)
	if err != nil {
		return fmt.Errorf("list recorded assets: %w", err)
	}

	seen := make(map[string]bool, len(found))
	for _, ref := range found {
		seen[ref.Path] = true
	}
	prefix := idx.libraryDir + string(filepath.Separator)

	var errs []error
	for _, p := range recorded {
		if seen[p] || !strings.HasPrefix(p, prefix) {
			continue
		}
		if err := idx.lib.OnAssetRemoved(ctx, assets.PathRef(p)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
			continue
		}
		idx.removed.Add(1)
	}
	if n := idx.removed.Load(); n > 0 {
		logging.Info("Removed %d vanished assets from the index", n)
	}
	return errors.Join(errs...)
}

func (idx *Indexer) begin(start time.Time) {
	idx.indexed.Store(0)
	idx.removed.Store(0)
	idx.folders.Store(0)
	idx.mu.Lock()
	idx.progress = IndexProgress{IsIndexing: true, StartedAt: start}
	idx.mu.Unlock()
}

func (idx *Indexer) setProgress(start time.Time, running bool) {
	p := IndexProgress{
		AssetsIndexed:  idx.indexed.Load(),
		FoldersIndexed: idx.folders.Load(),
		IsIndexing:     running,
	}
	if running {
		p.StartedAt = start
	}
	idx.mu.Lock()
	idx.progress = p
	idx.mu.Unlock()
}

// complete records a successful run.
func (idx *Indexer) complete(ctx context.Context, start time.Time) {
	now := time.Now()
	idx.setProgress(start, false)
	idx.mu.Lock()
	idx.lastIndexed = now
	idx.mu.Unlock()

	if idx.catalog != nil {
		if err := idx.catalog.SetLastIndexRun(ctx, now); err != nil {
			logging.Warn("Failed to record last index run: %v", err)
		}
	}
	logging.Info("Index complete: %d assets, %d folders in %v",
		idx.indexed.Load(), idx.folders.Load(), time.Since(start))

	if idx.onIndexComplete != nil {
		idx.onIndexComplete()
	}
}

// finish ends a run, successful or not.
func (idx *Indexer) finish() {
	idx.mu.Lock()
	idx.attempted = true
	if idx.progress.IsIndexing {
		idx.progress.IsIndexing = false
		idx.progress.StartedAt = time.Time{}
	}
	idx.mu.Unlock()
	idx.running.Store(false)
}
