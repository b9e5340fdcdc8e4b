package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"asset-preview/internal/assets"
	"asset-preview/internal/cache"
	"asset-preview/internal/capture"
	"asset-preview/internal/cleanup"
	"asset-preview/internal/hostexec"
	"asset-preview/internal/logging"
	"asset-preview/internal/metadata"
	"asset-preview/internal/namespace"
	"asset-preview/internal/scene"
	"asset-preview/internal/scheduler"
	"asset-preview/internal/session"
)

// ReportStore persists cleanup reports.
type ReportStore interface {
	SaveReport(ctx context.Context, assetPath string, r *cleanup.Report) error
	// LatestReport returns nil without error when no report exists.
	LatestReport(ctx context.Context, assetPath string) (*cleanup.Report, error)
	DeleteReports(ctx context.Context, assetPath string) error
}

// Config wires the engine's collaborators. Zero values select defaults.
type Config struct {
	// CacheDir holds the ephemeral tier and capture scratch files.
	CacheDir       string
	MasterSize     int
	MaxEscalations int
	Scheduler      scheduler.Config
	Dispatcher     scheduler.Dispatcher
	Metadata       metadata.Store
	Reports        ReportStore
	Allocator      *namespace.Allocator
}

// Engine implements the preview and metadata operations for one host.
type Engine struct {
	host     scene.Host
	sessions *session.Manager
	capturer *capture.Capturer
	cache    *cache.Cache
	store    metadata.Store
	reports  ReportStore
	sched    *scheduler.Scheduler
	log      *logging.Logger
}

// New builds an engine. exec must be the executor every other host user
// shares.
func New(host scene.Host, exec hostexec.Executor, cfg Config) (*Engine, error) {
	if cfg.CacheDir == "" {
		return nil, errors.New("engine: cache directory required")
	}

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	capturer, err := capture.New(filepath.Join(cfg.CacheDir, "work"), cfg.MasterSize)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		host:     host,
		capturer: capturer,
		cache:    c,
		store:    cfg.Metadata,
		reports:  cfg.Reports,
		log:      logging.For("engine"),
	}
	if e.store == nil {
		e.store = metadata.NewMemoryStore()
	}

	opts := []session.Option{
		session.WithCleanup(cleanup.New(host, cleanup.WithMaxEscalations(cfg.MaxEscalations))),
		session.WithReportSink(e.persistReport),
	}
	if cfg.Allocator != nil {
		opts = append(opts, session.WithAllocator(cfg.Allocator))
	}
	e.sessions = session.NewManager(host, exec, opts...)
	e.sched = scheduler.New(e.run, cfg.Dispatcher, cfg.Scheduler)
	return e, nil
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Cache returns the preview cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// MasterSize returns the edge length of durable previews.
func (e *Engine) MasterSize() int { return e.capturer.MasterSize() }

// Stop finishes queued requests and stops the workers.
func (e *Engine) Stop() {
	e.sched.Stop()
}

func (e *Engine) persistReport(ref assets.AssetRef, r *cleanup.Report) {
	if r.State == cleanup.StateFailed {
		e.log.Error("Cleanup of %s left content behind:\n%s", ref.Path, r.Summary())
	}
	if e.reports == nil {
		return
	}
	if err := e.reports.SaveReport(context.Background(), ref.Path, r); err != nil {
		e.log.Warn("Failed to persist cleanup report for %s: %v", ref.Path, err)
	}
}

// run executes scheduled requests on a worker.
func (e *Engine) run(ctx context.Context, req scheduler.Request) scheduler.Result {
	switch req.Kind {
	case scheduler.KindWorkspace:
		path, _, err := e.BringIntoWorkspace(ctx, req.Asset)
		return scheduler.Result{Path: path, Err: err}
	default:
		path, err := e.Preview(ctx, req.Asset, req.Size, req.Force)
		return scheduler.Result{Path: path, Err: err}
	}
}

// RequestPreview queues a preview request. cb receives the image path, or
// an empty path when the caller should show a generic icon.
func (e *Engine) RequestPreview(ctx context.Context, ref assets.AssetRef, size int, force bool, cb scheduler.Callback) error {
	return e.sched.Submit(ctx, scheduler.Request{Kind: scheduler.KindPreview, Asset: ref, Size: size, Force: force}, cb)
}

// OnAssetBroughtIntoWorkspace queues a full extraction and a forced
// capture sharing one session.
func (e *Engine) OnAssetBroughtIntoWorkspace(ctx context.Context, ref assets.AssetRef, cb scheduler.Callback) error {
	return e.sched.Submit(ctx, scheduler.Request{Kind: scheduler.KindWorkspace, Asset: ref, Force: true}, cb)
}

// OnAssetAdded records basic metadata. It never touches the host.
func (e *Engine) OnAssetAdded(ctx context.Context, ref assets.AssetRef) (*metadata.Record, error) {
	return e.basic(ctx, ref)
}

// OnAssetRemoved drops every cached artifact and record for ref, including
// the durable preview beside the asset.
func (e *Engine) OnAssetRemoved(ctx context.Context, ref assets.AssetRef) error {
	if ref.Type == "" {
		ref.Type = assets.ClassifyPath(ref.Path)
	}
	var errs []error
	if err := e.cache.Invalidate(ref); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.DeleteMetadata(ctx, ref.Path); err != nil {
		errs = append(errs, fmt.Errorf("delete metadata: %w", err))
	}
	if e.reports != nil {
		if err := e.reports.DeleteReports(ctx, ref.Path); err != nil {
			errs = append(errs, fmt.Errorf("delete reports: %w", err))
		}
	}
	e.log.Info("Removed %s from the library", ref.Path)
	return errors.Join(errs...)
}

// CleanupReport returns the most recent cleanup report for ref.
func (e *Engine) CleanupReport(ctx context.Context, ref assets.AssetRef) (*cleanup.Report, bool, error) {
	if r, ok := e.sessions.Report(ref); ok {
		return r, true, nil
	}
	if e.reports == nil {
		return nil, false, nil
	}
	r, err := e.reports.LatestReport(ctx, ref.Path)
	if err != nil {
		return nil, false, err
	}
	return r, r != nil, nil
}
