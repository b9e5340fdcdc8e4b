package scheduler

import (
	"sync"

	"asset-preview/internal/logging"
)

// Dispatcher delivers callbacks on the thread it owns.
type Dispatcher interface {
	Dispatch(fn func())
}

// Immediate runs callbacks on the calling goroutine.
type Immediate struct{}

// Dispatch implements Dispatcher.
func (Immediate) Dispatch(fn func()) { safeCall(fn) }

// MainLoop runs every callback, in order, on a single goroutine. Dispatch
// never blocks, so callbacks may dispatch further callbacks.
type MainLoop struct {
	mu      sync.Mutex
	closed  bool
	pending []func()
	wake    chan struct{}
	done    chan struct{}
}

// NewMainLoop starts the loop goroutine. buffer sizes the initial queue.
func NewMainLoop(buffer int) *MainLoop {
	m := &MainLoop{
		pending: make([]func(), 0, max(buffer, 0)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *MainLoop) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		for len(m.pending) == 0 && !m.closed {
			m.mu.Unlock()
			<-m.wake
			m.mu.Lock()
		}
		fns, closed := m.pending, m.closed
		m.pending = nil
		m.mu.Unlock()

		if len(fns) == 0 && closed {
			return
		}
		for _, fn := range fns {
			safeCall(fn)
		}
	}
}

// Dispatch queues fn. Callbacks dispatched after Close are dropped.
func (m *MainLoop) Dispatch(fn func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		logging.Warn("Scheduler: callback dispatched after main loop closed, dropping")
		return
	}
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	m.signal()
}

func (m *MainLoop) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close runs the callbacks already queued and stops the loop.
func (m *MainLoop) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
	<-m.done
}

// Queue holds callbacks until its owner drains them.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	ready   chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Dispatch implements Dispatcher.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled whenever callbacks are waiting.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Drain runs every waiting callback on the caller and returns how many ran.
func (q *Queue) Drain() int {
	q.mu.Lock()
	fns := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range fns {
		safeCall(fn)
	}
	return len(fns)
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scheduler: callback panicked: %v", r)
		}
	}()
	fn()
}
