package hostexec

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("host executor closed")

// Executor runs scene-graph sections one at a time.
type Executor interface {
	// Do runs fn exclusively. The section name labels metrics and logs.
	// ctx is only consulted while waiting for the slot.
	Do(ctx context.Context, section string, fn func() error) error
	Close() error
}

// Kind names an executor strategy in configuration.
type Kind string

const (
	KindSerial Kind = "serial"
	KindLoop   Kind = "loop"
)

// New returns the executor for kind.
func New(kind Kind) (Executor, error) {
	switch kind {
	case KindSerial, "":
		return NewSerial(), nil
	case KindLoop:
		return NewLoop(), nil
	default:
		return nil, fmt.Errorf("unknown host executor %q", kind)
	}
}

// PanicError wraps a panic raised inside a section.
type PanicError struct {
	Section string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("host section %s panicked: %v", e.Section, e.Value)
}

// run executes fn, converting a panic into a *PanicError and recording the
// section outcome.
func run(section string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Section: section, Value: r, Stack: debug.Stack()}
			logging.Error("Host section %s panicked: %v", section, r)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SceneSectionsTotal.WithLabelValues(section, status).Inc()
	}()
	return fn()
}

// Serial is an Executor backed by a single-slot semaphore.
type Serial struct {
	slot   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewSerial returns a Serial executor.
func NewSerial() *Serial {
	return &Serial{slot: make(chan struct{}, 1)}
}

// Do implements Executor.
func (s *Serial) Do(ctx context.Context, section string, fn func() error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	start := time.Now()
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	metrics.SceneLockWait.Observe(time.Since(start).Seconds())
	defer func() { <-s.slot }()

	return run(section, fn)
}

// Close implements Executor. Sections already running are not affected.
func (s *Serial) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type job struct {
	ctx     context.Context
	section string
	fn      func() error
	queued  time.Time
	done    chan error
}

// Loop is an Executor that runs every section on one goroutine locked to
// its OS thread.
type Loop struct {
	jobs     chan job
	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// NewLoop starts the loop goroutine.
func NewLoop() *Loop {
	l := &Loop{
		jobs:     make(chan job),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go l.loop()
	return l
}

func (l *Loop) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.finished)

	for {
		select {
		case j := <-l.jobs:
			metrics.SceneLockWait.Observe(time.Since(j.queued).Seconds())
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			j.done <- run(j.section, j.fn)
		case <-l.stop:
			return
		}
	}
}

// Do implements Executor. The caller blocks until the loop has run fn.
func (l *Loop) Do(ctx context.Context, section string, fn func() error) error {
	j := job{
		ctx:     ctx,
		section: section,
		fn:      fn,
		queued:  time.Now(),
		done:    make(chan error, 1),
	}

	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrClosed
	}
	return <-j.done
}

// Close stops the loop after the running section, if any, returns.
func (l *Loop) Close() error {
	l.once.Do(func() { close(l.stop) })
	<-l.finished
	return nil
}
