package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/cleanup"
	"asset-preview/internal/hostexec"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
	"asset-preview/internal/namespace"
	"asset-preview/internal/scene"
)

// ReportSink receives every cleanup report, e.g. for persistence.
type ReportSink func(ref assets.AssetRef, r *cleanup.Report)

// Manager opens and closes sessions against one host.
type Manager struct {
	host    scene.Host
	exec    hostexec.Executor
	alloc   *namespace.Allocator
	cleaner *cleanup.Engine
	sink    ReportSink
	log     *logging.Logger

	mu      sync.Mutex
	slots   map[string]*slot
	open    map[string]int
	peak    map[string]int
	reports map[string]*cleanup.Report
}

type slot struct {
	ch   chan struct{}
	refs int
}

// Option configures a Manager.
type Option func(*Manager)

// WithAllocator shares a namespace allocator.
func WithAllocator(a *namespace.Allocator) Option {
	return func(m *Manager) { m.alloc = a }
}

// WithCleanup replaces the default cleanup engine.
func WithCleanup(e *cleanup.Engine) Option {
	return func(m *Manager) { m.cleaner = e }
}

// WithReportSink registers a callback for cleanup reports.
func WithReportSink(sink ReportSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// NewManager returns a manager for host. exec must be the executor every
// other host user shares.
func NewManager(host scene.Host, exec hostexec.Executor, opts ...Option) *Manager {
	m := &Manager{
		host:    host,
		exec:    exec,
		log:     logging.For("session"),
		slots:   make(map[string]*slot),
		open:    make(map[string]int),
		peak:    make(map[string]int),
		reports: make(map[string]*cleanup.Report),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.alloc == nil {
		m.alloc = namespace.NewAllocator()
	}
	if m.cleaner == nil {
		m.cleaner = cleanup.New(host)
	}
	return m
}

// Host returns the managed host.
func (m *Manager) Host() scene.Host { return m.host }

// Executor returns the host executor.
func (m *Manager) Executor() hostexec.Executor { return m.exec }

// Open imports ref into a fresh namespace. It blocks while another session
// for the same asset is open; ctx is honoured only until the import starts.
// On failure it returns an *ImportError and leaves nothing open.
func (m *Manager) Open(ctx context.Context, ref assets.AssetRef) (*Session, error) {
	return m.OpenUnless(ctx, ref, nil)
}

// OpenUnless is Open with a second look once the asset's slot is held:
// when satisfied reports true, nothing is imported and ErrSatisfied is
// returned. A nil satisfied always imports.
func (m *Manager) OpenUnless(ctx context.Context, ref assets.AssetRef, satisfied func() bool) (*Session, error) {
	key := ref.Key()

	waitStart := time.Now()
	release, err := m.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	metrics.SessionSlotWait.Observe(time.Since(waitStart).Seconds())

	if satisfied != nil && satisfied() {
		release()
		m.log.Debug("Skipped import of %s, satisfied while waiting", ref.Path)
		return nil, ErrSatisfied
	}

	s := &Session{
		mgr:     m,
		ref:     ref,
		ns:      m.alloc.Allocate(ref.Stem()),
		release: release,
		status:  StatusImporting,
	}

	started := false
	err = m.exec.Do(ctx, "import", func() error {
		started = true
		return m.importInto(s)
	})
	if err == nil {
		m.markOpen(key, 1)
		metrics.SessionsOpen.Inc()
		m.log.Debug("Opened %s for %s (%d nodes)", s.ns, ref.Path, len(s.Nodes()))
		return s, nil
	}

	if !started {
		// Cancelled before the host was touched.
		m.alloc.Release(s.ns)
		release()
		return nil, err
	}

	var ie *ImportError
	if !errors.As(err, &ie) {
		// The import section died without cleaning up after itself.
		ie = &ImportError{Asset: ref, Namespace: s.ns, Err: err}
		_ = m.exec.Do(context.WithoutCancel(ctx), "cleanup", func() error {
			ie.Cleanup = m.cleaner.RunFrom(cleanup.PhaseDeleting, s.ns)
			m.restore(s.Snapshot())
			return nil
		})
		if ie.Cleanup == nil {
			ie.Cleanup = &cleanup.Report{Namespace: s.ns, State: cleanup.StateFailed}
		}
	}

	s.setStatus(StatusFailed)
	metrics.SessionsTotal.WithLabelValues("import_failed").Inc()
	m.log.Warn("Import of %s failed: %v", ref.Path, ie.Err)
	m.record(ref, ie.Cleanup)
	if ie.Cleanup.NamespaceAbsent {
		m.alloc.Release(s.ns)
	}
	release()
	return nil, ie
}

// importInto runs inside the executor.
func (m *Manager) importInto(s *Session) error {
	snap := Snapshot{
		Selection:        m.host.Selection(),
		View:             m.host.View(),
		CurrentNamespace: m.host.CurrentNamespace(),
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if m.host.NamespaceExists(s.ns) {
		// Never import twice into one namespace; this one is not ours.
		return &ImportError{
			Asset:     s.ref,
			Namespace: s.ns,
			Err:       fmt.Errorf("namespace %s: %w", s.ns, scene.ErrNamespaceExists),
			Cleanup:   &cleanup.Report{Namespace: s.ns, State: cleanup.StateFailed},
		}
	}
	if err := m.host.AddNamespace(s.ns); err != nil {
		return &ImportError{
			Asset:     s.ref,
			Namespace: s.ns,
			Err:       err,
			Cleanup:   &cleanup.Report{Namespace: s.ns, State: cleanup.StateDone, NamespaceAbsent: true},
		}
	}

	start := time.Now()
	err := m.host.Import(s.ref.Path, s.ns, s.addNode)
	metrics.ImportDuration.WithLabelValues(string(s.ref.Type)).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	report := m.cleaner.RunFrom(cleanup.PhaseDeleting, s.ns)
	m.restore(snap)
	return &ImportError{Asset: s.ref, Namespace: s.ns, Err: err, Cleanup: report}
}

// teardown runs the full cleanup for s and restores the host state.
func (m *Manager) teardown(s *Session) *cleanup.Report {
	var report *cleanup.Report
	err := m.exec.Do(context.Background(), "cleanup", func() error {
		report = m.cleaner.Run(s.ns)
		m.restore(s.Snapshot())
		return nil
	})
	if report == nil {
		report = &cleanup.Report{Namespace: s.ns, State: cleanup.StateFailed}
		if err != nil {
			report.Log = append(report.Log, err.Error())
		}
	}
	return report
}

// finish releases everything a closed session held.
func (m *Manager) finish(s *Session, report *cleanup.Report) {
	key := s.ref.Key()
	m.markOpen(key, -1)
	metrics.SessionsOpen.Dec()

	outcome := "closed"
	if err := report.Err(); err != nil {
		outcome = "cleanup_failed"
		m.log.Error("Session %s for %s: %v", s.ns, s.ref.Path, err)
	}
	metrics.SessionsTotal.WithLabelValues(outcome).Inc()

	m.record(s.ref, report)
	if report.NamespaceAbsent {
		m.alloc.Release(s.ns)
	}
	s.release()
}

// restore puts back the pre-import host state. Runs inside the executor.
func (m *Manager) restore(snap Snapshot) {
	current := snap.CurrentNamespace
	if !m.host.NamespaceExists(current) {
		current = scene.Root
	}
	if err := m.host.SetCurrentNamespace(current); err != nil {
		m.log.Warn("Restore current namespace %q: %v", current, err)
	}

	view := snap.View
	if !m.host.NamespaceExists(view.Isolate) {
		view.Isolate = scene.Root
	}
	if err := m.host.SetView(view); err != nil {
		m.log.Warn("Restore view: %v", err)
	}

	sel := slices.DeleteFunc(snap.Selection.Clone(), func(id scene.NodeID) bool {
		_, ok := m.host.Node(id)
		return !ok
	})
	if err := m.host.Select(sel); err != nil {
		m.log.Warn("Restore selection: %v", err)
	}
}

func (m *Manager) record(ref assets.AssetRef, r *cleanup.Report) {
	m.mu.Lock()
	m.reports[ref.Key()] = r
	m.mu.Unlock()
	if m.sink != nil {
		m.sink(ref, r)
	}
}

// Report returns the most recent cleanup report for ref.
func (m *Manager) Report(ref assets.AssetRef) (*cleanup.Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[ref.Key()]
	return r, ok
}

// OpenCount returns the number of open sessions for ref.
func (m *Manager) OpenCount(ref assets.AssetRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[ref.Key()]
}

// PeakOpen returns the highest OpenCount ever observed for ref.
func (m *Manager) PeakOpen(ref assets.AssetRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak[ref.Key()]
}

func (m *Manager) markOpen(key string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[key] += delta
	if m.open[key] > m.peak[key] {
		m.peak[key] = m.open[key]
	}
	if m.open[key] == 0 {
		delete(m.open, key)
	}
}

// acquire takes the per-asset slot.
func (m *Manager) acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	sl := m.slots[key]
	if sl == nil {
		sl = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = sl
	}
	sl.refs++
	m.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, sl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-sl.ch
			m.unref(key, sl)
		})
	}, nil
}

func (m *Manager) unref(key string, sl *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(m.slots, key)
	}
}
