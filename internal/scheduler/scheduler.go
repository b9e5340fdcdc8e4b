package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
	"asset-preview/internal/workers"
)

var (
	ErrQueueFull = errors.New("scheduler queue full")
	ErrStopped   = errors.New("scheduler stopped")
)

// Kind says what a request asks for.
type Kind string

const (
	KindPreview   Kind = "preview"
	KindWorkspace Kind = "workspace"
)

// Request is one unit of generation work.
type Request struct {
	Kind  Kind
	Asset assets.AssetRef
	Size  int
	Force bool
}

// Result carries the produced image path. An empty path with a nil error
// means no preview is available and the caller should show a generic icon.
type Result struct {
	Path string
	Err  error
}

// Callback receives a finished request on the dispatcher's thread.
type Callback func(Request, Result)

// Job performs a request on a worker.
type Job func(ctx context.Context, req Request) Result

// Backpressure holds workers back while resources are short. WaitIfPaused
// returns false when the gate is shutting down.
type Backpressure interface {
	WaitIfPaused() bool
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	// Backpressure, when set, is consulted before each request runs.
	Backpressure Backpressure
}

// DefaultConfig sizes the pool for mixed host and disk work.
func DefaultConfig() Config {
	return Config{
		Workers:   workers.Scheduler.Size(),
		QueueSize: 256,
	}
}

type task struct {
	ctx context.Context
	req Request
	cb  Callback
}

// Scheduler is a bounded worker pool.
type Scheduler struct {
	run      Job
	dispatch Dispatcher
	workers  int
	gate     Backpressure

	mu      sync.RWMutex
	stopped bool
	queue   chan task
	wg      sync.WaitGroup
}

// New starts the workers.
func New(run Job, dispatch Dispatcher, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if dispatch == nil {
		dispatch = Immediate{}
	}

	s := &Scheduler{
		run:      run,
		dispatch: dispatch,
		workers:  cfg.Workers,
		gate:     cfg.Backpressure,
		queue:    make(chan task, cfg.QueueSize),
	}
	metrics.SchedulerWorkers.Set(float64(cfg.Workers))
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logging.Debug("Scheduler: started %d workers (queue %d)", cfg.Workers, cfg.QueueSize)
	return s
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int { return s.workers }

// Submit queues req. cb is always called exactly once for an accepted
// request, including when ctx is cancelled before a worker picks it up.
func (s *Scheduler) Submit(ctx context.Context, req Request, cb Callback) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		metrics.SchedulerRequestsTotal.WithLabelValues("rejected").Inc()
		return ErrStopped
	}
	select {
	case s.queue <- task{ctx: ctx, req: req, cb: cb}:
		metrics.SchedulerQueueDepth.Inc()
		return nil
	default:
		metrics.SchedulerRequestsTotal.WithLabelValues("rejected").Inc()
		return ErrQueueFull
	}
}

// Stop rejects new requests, finishes the queued ones and waits for the
// workers. Callbacks may still be pending in the dispatcher afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for t := range s.queue {
		metrics.SchedulerQueueDepth.Dec()
		s.handle(id, t)
	}
}

func (s *Scheduler) handle(id int, t task) {
	if s.gate != nil && !s.gate.WaitIfPaused() {
		metrics.SchedulerRequestsTotal.WithLabelValues("cancelled").Inc()
		s.deliver(t, Result{Err: ErrStopped})
		return
	}
	if err := t.ctx.Err(); err != nil {
		metrics.SchedulerRequestsTotal.WithLabelValues("cancelled").Inc()
		s.deliver(t, Result{Err: err})
		return
	}

	metrics.SchedulerInFlight.Inc()
	res := s.execute(t)
	metrics.SchedulerInFlight.Dec()

	if res.Err != nil {
		logging.Debug("Scheduler: worker %d: %s %s failed: %v", id, t.req.Kind, t.req.Asset.Name(), res.Err)
		metrics.SchedulerRequestsTotal.WithLabelValues("error").Inc()
	} else {
		metrics.SchedulerRequestsTotal.WithLabelValues("success").Inc()
	}
	s.deliver(t, res)
}

func (s *Scheduler) execute(t task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scheduler: %s %s panicked: %v", t.req.Kind, t.req.Asset.Name(), r)
			res = Result{Err: fmt.Errorf("request panicked: %v", r)}
		}
	}()
	return s.run(t.ctx, t.req)
}

func (s *Scheduler) deliver(t task, res Result) {
	if t.cb == nil {
		return
	}
	s.dispatch.Dispatch(func() { t.cb(t.req, res) })
}
