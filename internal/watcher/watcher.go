package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metadata"
	"asset-preview/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before it is examined.
const DefaultDebounce = 500 * time.Millisecond

// Library receives the events the watcher derives.
type Library interface {
	OnAssetAdded(ctx context.Context, ref assets.AssetRef) (*metadata.Record, error)
	OnAssetRemoved(ctx context.Context, ref assets.AssetRef) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed path is examined.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher reports library changes as they happen.
type Watcher struct {
	lib      Library
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ctx     context.Context
	wg      sync.WaitGroup
}

// New watches root and every visible directory below it.
func New(lib Library, root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve library path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		lib:      lib,
		root:     abs,
		debounce: DefaultDebounce,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := w.addTree(abs, false); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled or the watcher is closed. It
// waits for in-flight notifications before returning.
func (w *Watcher) Run(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	logging.Info("Watching library %s for changes", w.root)
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Library watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// WatchList returns the watched directories.
func (w *Watcher) WatchList() []string {
	return w.fsw.WatchList()
}

// addTree watches dir and its visible subdirectories. With report set, the
// assets already inside are scheduled as well, for directories that were
// moved into the library whole.
func (w *Watcher) addTree(dir string, report bool) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			logging.Warn("Skipping %s in library watch: %v", path, err)
			return nil
		}
		if path != dir && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if report {
				w.schedule(path)
			}
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		metrics.WatcherErrors.Inc()
		return count, fmt.Errorf("watch library: %w", err)
	}
	logging.Debug("Watching %d directories under %s", count, dir)
	return count, nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.hiddenPath(event.Name) {
		return
	}
	op := eventType(event.Op)
	if op == "" {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(op).Inc()

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(event.Name, true); err != nil {
				logging.Warn("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}
	w.schedule(event.Name)
}

// schedule examines path once it has been quiet for the debounce window.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.examine(ctx, path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// examine reports path as added or removed depending on whether it still
// exists. Paths that were never assets are ignored.
func (w *Watcher) examine(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		if !assets.Classify(path).IsAsset() {
			return
		}
		ref, err := assets.NewRef(path)
		if err != nil {
			logging.Warn("Library watcher could not read %s: %v", path, err)
			return
		}
		if _, err := w.lib.OnAssetAdded(ctx, ref); err != nil {
			logging.Warn("Failed to record %s: %v", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		ref := assets.PathRef(path)
		if !ref.Type.IsAsset() {
			return
		}
		if err := w.lib.OnAssetRemoved(ctx, ref); err != nil {
			logging.Warn("Failed to remove %s: %v", path, err)
		}
	case err != nil:
		logging.Warn("Library watcher could not stat %s: %v", path, err)
	}
}

func (w *Watcher) hiddenPath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if hidden(part) {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// eventType returns the metric label for op, or "" for events that carry no
// content change.
func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
