package cleanup

import (
	"errors"
	"fmt"
	"time"

	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
	"asset-preview/internal/scene"
)

// Host is the part of the scene the engine needs.
type Host interface {
	scene.Namespaces
	scene.Graph
	Select(sel scene.Selection) error
}

// Engine runs cleanups against one host.
type Engine struct {
	host           Host
	maxEscalations int
	log            *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxEscalations sets how many aggressive passes a run may make before
// giving up. The default is one.
func WithMaxEscalations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxEscalations = n
		}
	}
}

// New returns an engine for host.
func New(host Host, opts ...Option) *Engine {
	e := &Engine{
		host:           host,
		maxEscalations: 1,
		log:            logging.For("cleanup"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type stepFunc func(*Report, *PhaseEntry) error

type phaseStep struct {
	phase Phase
	fn    stepFunc
}

// Run tears down ns starting from the first phase.
func (e *Engine) Run(ns string) *Report {
	return e.RunFrom(PhaseUnlocking, ns)
}

// RunFrom tears down ns starting at phase start, which must be one of the
// normal phases. Validation and escalation always follow. Cleaning up a
// namespace that is already gone is a no-op that reports done.
func (e *Engine) RunFrom(start Phase, ns string) *Report {
	r := &Report{Namespace: ns, StartedAt: time.Now()}
	defer func() {
		r.FinishedAt = time.Now()
		metrics.CleanupRunsTotal.WithLabelValues(string(r.State)).Inc()
		metrics.CleanupDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}()

	if ns == scene.Root {
		r.State = StateFailed
		r.logf("refusing to clean up the root namespace")
		e.log.Error("Refusing to clean up the root namespace")
		return r
	}
	if !scene.Present(e.host, e.host, ns) {
		r.NamespaceAbsent = true
		r.State = StateDone
		e.log.Debug("Namespace %s already absent", ns)
		return r
	}

	normal := []phaseStep{
		{PhaseUnlocking, func(r *Report, pe *PhaseEntry) error { return e.unlock(r, pe, false) }},
		{PhaseDisconnecting, func(r *Report, pe *PhaseEntry) error { return e.disconnect(r, pe, false) }},
		{PhaseDeleting, e.deleteEach},
		{PhaseNamespaceRemoval, e.removeNamespace},
	}
	first := len(normal)
	for i, s := range normal {
		if s.phase == start {
			first = i
			break
		}
	}
	for _, s := range normal[first:] {
		e.step(r, s.phase, s.fn)
	}

	e.step(r, PhaseValidating, e.validate)
	for round := 0; !r.NamespaceAbsent && round < e.maxEscalations; round++ {
		r.Escalated = true
		metrics.CleanupEscalations.Inc()
		e.log.Warn("%s", r.logf("namespace %s still present, escalating (round %d)", ns, round+1))
		e.step(r, PhaseAggressiveDelete, e.aggressiveDelete)
		e.step(r, PhaseValidating, e.validate)
	}

	if r.NamespaceAbsent {
		r.State = StateDone
		e.log.Info("Cleaned up %s", r.Summary())
	} else {
		r.State = StateFailed
		e.log.Error("Cleanup failed: %s", r.Summary())
	}
	return r
}

// step runs one phase, turning panics into recorded errors so the next
// phase always runs.
func (e *Engine) step(r *Report, phase Phase, fn stepFunc) {
	entry := PhaseEntry{Phase: phase}
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return fn(r, &entry)
	}()

	entry.Duration = time.Since(start)
	status := "success"
	if err != nil {
		entry.Err = err.Error()
		status = "error"
		if phase != PhaseValidating {
			e.log.Warn("%s", r.logf("%s failed for %s: %v", phase, r.Namespace, err))
		}
	}
	r.Phases = append(r.Phases, entry)
	metrics.CleanupPhasesTotal.WithLabelValues(string(phase), status).Inc()
}

func (e *Engine) unlock(r *Report, pe *PhaseEntry, recursive bool) error {
	var errs []error
	for _, id := range e.host.Nodes(r.Namespace, recursive) {
		node, ok := e.host.Node(id)
		if !ok || !node.Locked() {
			continue
		}
		if err := e.host.SetLocked(id, false); err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", id, err))
			continue
		}
		pe.Nodes++
		r.Unlocked = append(r.Unlocked, id)
		metrics.CleanupNodesUnlocked.Inc()
		kind := "node"
		if node.Singleton() {
			kind = "singleton node"
		}
		e.log.Info("%s", r.logf("unlocked %s %s", kind, id))
	}
	return errors.Join(errs...)
}

func (e *Engine) disconnect(r *Report, pe *PhaseEntry, recursive bool) error {
	var errs []error
	seen := make(map[scene.Connection]bool)
	for _, id := range e.host.Nodes(r.Namespace, recursive) {
		for _, c := range e.host.Connections(id) {
			if seen[c] || !c.Crosses(r.Namespace) {
				continue
			}
			seen[c] = true
			if err := e.host.Disconnect(c); err != nil {
				errs = append(errs, fmt.Errorf("disconnect %s: %w", c, err))
				continue
			}
			pe.Nodes++
			r.Disconnected = append(r.Disconnected, c)
			metrics.CleanupConnectionsBroken.Inc()
			e.log.Info("%s", r.logf("disconnected %s", c))
		}
	}
	return errors.Join(errs...)
}

// deleteEach deletes the namespace's nodes one at a time, carrying on past
// nodes that refuse.
func (e *Engine) deleteEach(r *Report, pe *PhaseEntry) error {
	ids := e.host.Nodes(r.Namespace, false)
	failed := 0
	for _, id := range ids {
		if err := e.deleteOne(id); err != nil {
			failed++
			r.Skipped = append(r.Skipped, id)
			e.log.Warn("%s", r.logf("could not delete %s: %v", id, err))
			continue
		}
		pe.Nodes++
		r.Deleted++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d nodes could not be deleted", failed, len(ids))
	}
	return nil
}

func (e *Engine) deleteOne(id scene.NodeID) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return e.host.Delete(id)
}

func (e *Engine) removeNamespace(r *Report, _ *PhaseEntry) error {
	if !e.host.NamespaceExists(r.Namespace) {
		return nil
	}
	return e.host.RemoveNamespace(r.Namespace, true)
}

func (e *Engine) validate(r *Report, pe *PhaseEntry) error {
	remaining := e.host.Nodes(r.Namespace, true)
	pe.Nodes = len(remaining)
	exists := e.host.NamespaceExists(r.Namespace)
	r.NamespaceAbsent = !exists && len(remaining) == 0
	if r.NamespaceAbsent {
		r.logf("namespace %s confirmed absent", r.Namespace)
		return nil
	}
	return fmt.Errorf("namespace %s still present (exists=%v, %d nodes remain)", r.Namespace, exists, len(remaining))
}

// aggressiveDelete is the escalation pass. Every sub-step runs even when an
// earlier one failed.
func (e *Engine) aggressiveDelete(r *Report, pe *PhaseEntry) error {
	var errs []error

	if err := e.unlock(r, &PhaseEntry{}, true); err != nil {
		errs = append(errs, err)
	}
	if err := e.disconnect(r, &PhaseEntry{}, true); err != nil {
		errs = append(errs, err)
	}

	ids := e.host.Nodes(r.Namespace, true)
	pe.Nodes = len(ids)
	if len(ids) > 0 {
		if err := e.host.Select(scene.Selection(ids)); err != nil {
			errs = append(errs, fmt.Errorf("select: %w", err))
		}
		if err := e.bulkDelete(ids); err != nil {
			e.log.Warn("%s", r.logf("bulk delete of %d nodes failed: %v", len(ids), err))
			for _, id := range ids {
				if err := e.deleteOne(id); err != nil {
					errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
					continue
				}
				r.Deleted++
			}
		} else {
			r.Deleted += len(ids)
			r.logf("bulk deleted %d nodes", len(ids))
		}
	}

	if current := e.host.CurrentNamespace(); current != scene.Root {
		if err := e.host.SetCurrentNamespace(scene.Root); err != nil {
			errs = append(errs, fmt.Errorf("switch to root namespace: %w", err))
		} else {
			r.logf("switched current namespace from %s to root", current)
		}
	}

	if e.host.NamespaceExists(r.Namespace) {
		if err := e.host.RemoveNamespace(r.Namespace, true); err != nil {
			errs = append(errs, fmt.Errorf("remove namespace: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) bulkDelete(ids []scene.NodeID) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return e.host.Delete(ids...)
}
