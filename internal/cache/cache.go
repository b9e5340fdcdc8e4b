package cache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/filesystem"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"

	"github.com/gofrs/flock"
)

// Kind distinguishes captured previews from generated icons.
type Kind string

const (
	KindCaptured  Kind = "captured-preview"
	KindGenerated Kind = "generated-icon"
)

const (
	tierDurable   = "durable"
	tierEphemeral = "ephemeral"

	// DefaultLockWait bounds how long a durable write waits for another
	// process holding the same preview.
	DefaultLockWait = 10 * time.Second

	lockRetry = 25 * time.Millisecond
)

// Entry is one cached image.
type Entry struct {
	Path        string    `json:"path"`
	Kind        Kind      `json:"kind"`
	Size        int       `json:"size"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Sidecar is the record written next to a durable preview.
type Sidecar struct {
	Fingerprint string    `json:"fingerprint"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
	Source      string    `json:"source"`
}

type entryKey struct {
	fingerprint string
	size        int
	kind        Kind
}

// Cache is safe for concurrent use. Construct one per process.
type Cache struct {
	dir      string
	iconsDir string
	locksDir string
	lockWait time.Duration
	retry    filesystem.Retry

	mu    sync.RWMutex
	index map[string]map[entryKey]Entry
	// genMu serialises generic icon rendering.
	genMu sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLockWait overrides DefaultLockWait.
func WithLockWait(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.lockWait = d
		}
	}
}

// New prepares the ephemeral directory under dir. Icons left by an earlier
// process are discarded.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:      dir,
		iconsDir: filepath.Join(dir, "icons"),
		locksDir: filepath.Join(dir, "locks"),
		lockWait: DefaultLockWait,
		retry:    filesystem.DefaultRetry(),
		index:    make(map[string]map[entryKey]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.RemoveAll(c.iconsDir); err != nil {
		logging.Warn("Cache: failed to clear stale icons in %s: %v", c.iconsDir, err)
	}
	for _, d := range []string{c.iconsDir, c.locksDir, filepath.Join(dir, "generic")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, &IOError{Op: "mkdir", Path: d, Err: err}
		}
	}
	logging.Debug("Cache: ephemeral dir %s", dir)
	return c, nil
}

// Dir returns the ephemeral root directory.
func (c *Cache) Dir() string { return c.dir }

// DurablePath is where the captured preview for an asset lives.
func DurablePath(ref assets.AssetRef) string {
	return filepath.Join(filepath.Dir(ref.Path), ref.Name()+"_preview.png")
}

// SidecarPath is where the fingerprint record for an asset lives.
func SidecarPath(ref assets.AssetRef) string {
	return filepath.Join(filepath.Dir(ref.Path), ref.Name()+"_preview.json")
}

// Get returns the best cached image for ref. With force set it always
// misses so the caller regenerates.
func (c *Cache) Get(ref assets.AssetRef, size int, force bool) (Entry, bool) {
	if force {
		metrics.CacheLookupsTotal.WithLabelValues("none", "forced").Inc()
		return Entry{}, false
	}
	if e, ok := c.Durable(ref); ok {
		return e, true
	}
	return c.ephemeral(ref, size)
}

// Durable looks up only the captured preview.
func (c *Cache) Durable(ref assets.AssetRef) (Entry, bool) {
	sc, err := c.readSidecar(ref)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Cache: unreadable sidecar for %s: %v", ref.Name(), err)
		}
		metrics.CacheLookupsTotal.WithLabelValues(tierDurable, "miss").Inc()
		return Entry{}, false
	}
	if sc.Fingerprint != ref.Fingerprint() {
		logging.Debug("Cache: stale preview for %s (have %s, want %s)", ref.Name(), sc.Fingerprint, ref.Fingerprint())
		metrics.CacheLookupsTotal.WithLabelValues(tierDurable, "stale").Inc()
		return Entry{}, false
	}
	path := DurablePath(ref)
	if _, err := c.retry.Stat(path); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(tierDurable, "miss").Inc()
		return Entry{}, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(tierDurable, "hit").Inc()
	return Entry{
		Path:        path,
		Kind:        KindCaptured,
		Size:        max(sc.Width, sc.Height),
		Fingerprint: sc.Fingerprint,
		CreatedAt:   sc.CreatedAt,
	}, true
}

func (c *Cache) readSidecar(ref assets.AssetRef) (Sidecar, error) {
	var sc Sidecar
	data, err := c.retry.ReadFile(SidecarPath(ref))
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decode sidecar: %w", err)
	}
	return sc, nil
}

func (c *Cache) ephemeral(ref assets.AssetRef, size int) (Entry, bool) {
	k := entryKey{fingerprint: ref.Fingerprint(), size: size, kind: KindGenerated}

	c.mu.RLock()
	e, ok := c.index[ref.Key()][k]
	c.mu.RUnlock()

	if ok {
		if _, err := os.Stat(e.Path); err == nil {
			metrics.CacheLookupsTotal.WithLabelValues(tierEphemeral, "hit").Inc()
			return e, true
		}
		c.drop(ref.Key(), k)
	}
	metrics.CacheLookupsTotal.WithLabelValues(tierEphemeral, "miss").Inc()
	return Entry{}, false
}

func (c *Cache) drop(assetKey string, k entryKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.index[assetKey], k)
	if len(c.index[assetKey]) == 0 {
		delete(c.index, assetKey)
	}
	c.publishLenLocked()
}

// StoreCaptured publishes the image at src as the durable preview for ref.
// Any failure is an *IOError and leaves the previous preview intact.
func (c *Cache) StoreCaptured(ctx context.Context, ref assets.AssetRef, src string) (entry Entry, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.CacheWritesTotal.WithLabelValues(tierDurable, status).Inc()
	}()

	data, err := os.ReadFile(src)
	if err != nil {
		return Entry{}, &IOError{Op: "read", Path: src, Err: err}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Entry{}, &IOError{Op: "decode", Path: src, Err: err}
	}

	dst := DurablePath(ref)
	unlock, err := c.lockDurable(ctx, dst)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	sc := Sidecar{
		Fingerprint: ref.Fingerprint(),
		Width:       cfg.Width,
		Height:      cfg.Height,
		CreatedAt:   time.Now().UTC(),
		Source:      "capture",
	}
	meta, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return Entry{}, &IOError{Op: "encode", Path: SidecarPath(ref), Err: err}
	}

	// The image goes first: a reader that sees the new sidecar always finds
	// the matching image.
	if err := filesystem.WriteFileAtomic(dst, data, 0o644); err != nil {
		return Entry{}, &IOError{Op: "write", Path: dst, Err: err}
	}
	if err := filesystem.WriteFileAtomic(SidecarPath(ref), meta, 0o644); err != nil {
		return Entry{}, &IOError{Op: "write", Path: SidecarPath(ref), Err: err}
	}

	logging.Debug("Cache: stored preview %s (%dx%d)", dst, cfg.Width, cfg.Height)
	return Entry{
		Path:        dst,
		Kind:        KindCaptured,
		Size:        max(cfg.Width, cfg.Height),
		Fingerprint: sc.Fingerprint,
		CreatedAt:   sc.CreatedAt,
	}, nil
}

// lockDurable takes the cross-process lock for one durable preview. Lock
// files live in the ephemeral directory so the library stays clean.
func (c *Cache) lockDurable(ctx context.Context, dst string) (func(), error) {
	name := fmt.Sprintf("%x.lock", md5.Sum([]byte(dst)))
	lock := flock.New(filepath.Join(c.locksDir, name))

	ctx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()

	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, &IOError{Op: "lock", Path: dst, Err: err}
	}
	if !ok {
		return nil, &IOError{Op: "lock", Path: dst, Err: errors.New("lock not acquired")}
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Cache: failed to release lock for %s: %v", dst, err)
		}
	}, nil
}

// StoreGenerated copies the image at src into the ephemeral tier for ref at
// the given size.
func (c *Cache) StoreGenerated(ref assets.AssetRef, size int, src string) (entry Entry, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.CacheWritesTotal.WithLabelValues(tierEphemeral, status).Inc()
	}()

	k := entryKey{fingerprint: ref.Fingerprint(), size: size, kind: KindGenerated}
	name := fmt.Sprintf("%x.png", md5.Sum([]byte(fmt.Sprintf("%s|%s|%d|%s", ref.Key(), k.fingerprint, k.size, k.kind))))
	dst := filepath.Join(c.iconsDir, name)

	in, err := os.Open(src)
	if err != nil {
		return Entry{}, &IOError{Op: "read", Path: src, Err: err}
	}
	defer in.Close()

	if err := filesystem.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return Entry{}, &IOError{Op: "write", Path: dst, Err: err}
	}

	e := Entry{Path: dst, Kind: KindGenerated, Size: size, Fingerprint: k.fingerprint, CreatedAt: time.Now().UTC()}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.index[ref.Key()]
	if entries == nil {
		entries = make(map[entryKey]Entry)
		c.index[ref.Key()] = entries
	}
	for old, oe := range entries {
		if old.fingerprint != k.fingerprint {
			_ = os.Remove(oe.Path)
			delete(entries, old)
		}
	}
	entries[k] = e
	c.publishLenLocked()
	return e, nil
}

// Invalidate removes every entry for ref from both tiers, including the
// durable files beside the asset.
func (c *Cache) Invalidate(ref assets.AssetRef) error {
	metrics.CacheInvalidationsTotal.Inc()

	c.mu.Lock()
	entries := c.index[ref.Key()]
	delete(c.index, ref.Key())
	c.publishLenLocked()
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &IOError{Op: "remove", Path: e.Path, Err: err})
		}
	}
	for _, path := range []string{DurablePath(ref), SidecarPath(ref)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &IOError{Op: "remove", Path: path, Err: err})
		}
	}
	if len(errs) == 0 {
		logging.Debug("Cache: invalidated %s", ref.Name())
	}
	return errors.Join(errs...)
}

// Clear wipes the ephemeral tier. Durable previews are untouched.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]map[entryKey]Entry)
	c.publishLenLocked()
	if err := os.RemoveAll(c.iconsDir); err != nil {
		return &IOError{Op: "clear", Path: c.iconsDir, Err: err}
	}
	if err := os.MkdirAll(c.iconsDir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: c.iconsDir, Err: err}
	}
	return nil
}

// Len returns the number of ephemeral entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lenLocked()
}

func (c *Cache) lenLocked() int {
	n := 0
	for _, entries := range c.index {
		n += len(entries)
	}
	return n
}

func (c *Cache) publishLenLocked() {
	metrics.CacheEphemeralEntries.Set(float64(c.lenLocked()))
}

// Generic returns the path of a shared placeholder icon, rendering it with
// render on first use.
func (c *Cache) Generic(name string, size int, render func(io.Writer) error) (string, error) {
	path := filepath.Join(c.dir, "generic", fmt.Sprintf("%s_%d.png", name, size))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	c.genMu.Lock()
	defer c.genMu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &IOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	if err := filesystem.WriteAtomic(path, 0o644, render); err != nil {
		return "", &IOError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}
