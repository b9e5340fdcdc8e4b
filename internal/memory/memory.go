package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"asset-preview/internal/logging"
	promMetrics "asset-preview/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft limit; 0 uses GOMEMLIMIT.
	MemoryLimitBytes int64
	// HighWaterMark is the usage ratio a paused monitor must fall below to resume.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio that pauses preview generation.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig pauses at 85% of the limit and resumes below 70%.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// paused applies the water marks with hysteresis.
func (c Config) paused(wasPaused bool, usage float64) bool {
	if wasPaused {
		return usage >= c.HighWaterMark
	}
	return usage >= c.CriticalWaterMark
}

// Monitor samples heap usage and holds scheduler workers back while it is
// critical. Captures decode and scale full-size images, so they are the
// work worth pausing.
type Monitor struct {
	config Config
	limit  int64
	usage  atomic.Uint64 // float64 bits
	gate   *gate

	stop     chan struct{}
	stopOnce sync.Once

	// readAlloc is swapped in tests.
	readAlloc func() uint64
}

// NewMonitor creates a monitor. Without an explicit limit or GOMEMLIMIT it
// never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
			logging.Info("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}
	return &Monitor{
		config:    config,
		limit:     limit,
		gate:      newGate(),
		stop:      make(chan struct{}),
		readAlloc: heapObjectBytes,
	}
}

// heapObjectBytes reads live plus unswept heap objects without the
// stop-the-world of runtime.ReadMemStats.
func heapObjectBytes() uint64 {
	sample := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// Start samples every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkMemory()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) checkMemory() {
	if m.limit <= 0 {
		return
	}
	usage := float64(m.readAlloc()) / float64(m.limit)
	m.usage.Store(math.Float64bits(usage))
	promMetrics.MemoryUsageRatio.Set(usage)

	switch pause := m.config.paused(m.gate.isShut(), usage); {
	case pause && m.gate.shut():
		logging.Warn("Memory critical (%.1f%% of limit), pausing preview generation", usage*100)
		promMetrics.MemoryPaused.Set(1)
		promMetrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case !pause && m.gate.open():
		logging.Info("Memory recovered (%.1f%% of limit), resuming preview generation", usage*100)
		promMetrics.MemoryPaused.Set(0)
	}
}

// WaitIfPaused blocks while memory is critical. It reports false when the
// monitor stopped first.
func (m *Monitor) WaitIfPaused() bool {
	select {
	case <-m.gate.wait():
		return true
	case <-m.stop:
		return false
	}
}

// IsPaused reports whether generation is held back.
func (m *Monitor) IsPaused() bool {
	return m.gate.isShut()
}

// GetUsage is the last sampled usage as a ratio of the limit, 0 without one.
func (m *Monitor) GetUsage() float64 {
	if m.limit == 0 {
		return 0
	}
	return math.Float64frombits(m.usage.Load())
}

// gate is a latch: wait returns a channel that is closed while the gate is
// open.
type gate struct {
	mu     sync.Mutex
	opened chan struct{}
	closed bool
}

func newGate() *gate {
	g := &gate{opened: make(chan struct{})}
	close(g.opened)
	return g
}

// shut closes the gate and reports whether it was open.
func (g *gate) shut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	g.opened = make(chan struct{})
	return true
}

// open opens the gate and reports whether it was shut.
func (g *gate) open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		return false
	}
	g.closed = false
	close(g.opened)
	return true
}

func (g *gate) isShut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *gate) wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened
}
