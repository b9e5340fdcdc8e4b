package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"asset-preview/internal/assets"
	"asset-preview/internal/cleanup"
	"asset-preview/internal/scene"
)

// Status is the lifecycle position of a Session.
type Status string

const (
	StatusImporting  Status = "importing"
	StatusCapturing  Status = "capturing"
	StatusExtracting Status = "extracting"
	StatusCleaning   Status = "cleaning"
	StatusClosed     Status = "closed"
	StatusFailed     Status = "failed"
)

// Snapshot is the host state captured before an import.
type Snapshot struct {
	Selection        scene.Selection
	View             scene.ViewConfig
	CurrentNamespace string
}

// Session is one open isolated import.
type Session struct {
	mgr     *Manager
	ref     assets.AssetRef
	ns      string
	release func()

	mu       sync.Mutex
	status   Status
	nodes    []scene.NodeID
	snapshot Snapshot
	report   *cleanup.Report

	closeOnce sync.Once
}

// Asset returns the imported asset.
func (s *Session) Asset() assets.AssetRef { return s.ref }

// Namespace returns the isolation namespace.
func (s *Session) Namespace() string { return s.ns }

// Nodes returns the nodes the import reported creating.
func (s *Session) Nodes() []scene.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.nodes)
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns the pre-import host state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Report returns the cleanup report once the session is closed.
func (s *Session) Report() *cleanup.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *Session) addNode(id scene.NodeID) {
	s.mu.Lock()
	s.nodes = append(s.nodes, id)
	s.mu.Unlock()
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Begin moves an open session into the capturing or extracting status.
func (s *Session) Begin(st Status) error {
	if st != StatusCapturing && st != StatusExtracting {
		return fmt.Errorf("session %s: cannot begin %s", s.ns, st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusImporting, StatusCapturing, StatusExtracting:
		s.status = st
		return nil
	default:
		return ErrSessionClosed
	}
}

func (s *Session) open() bool {
	switch s.Status() {
	case StatusCleaning, StatusClosed, StatusFailed:
		return false
	}
	return true
}

// Do runs fn against the host inside the executor. ctx only bounds the
// wait for the executor.
func (s *Session) Do(ctx context.Context, section string, fn func(scene.Host) error) error {
	if !s.open() {
		return ErrSessionClosed
	}
	return s.mgr.exec.Do(ctx, section, func() error {
		if !s.open() {
			return ErrSessionClosed
		}
		return fn(s.mgr.host)
	})
}

// Close tears the import down and releases the asset. It runs the full
// cleanup regardless of how the session's work went and cannot be
// cancelled. Calling Close again returns the first report.
func (s *Session) Close() *cleanup.Report {
	s.closeOnce.Do(func() {
		s.setStatus(StatusCleaning)
		report := s.mgr.teardown(s)

		s.mu.Lock()
		s.report = report
		if report.State == cleanup.StateDone {
			s.status = StatusClosed
		} else {
			s.status = StatusFailed
		}
		s.mu.Unlock()

		s.mgr.finish(s, report)
	})
	return s.Report()
}
