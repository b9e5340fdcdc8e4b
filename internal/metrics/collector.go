package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"asset-preview/internal/logging"
)

// StatsProvider supplies the gauges that are cheaper to poll than to
// maintain on every write.
type StatsProvider interface {
	GetStats() Stats
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsFunc) GetStats() Stats { return f() }

// Stats holds the polled counts.
type Stats struct {
	BasicRecords     int
	FullRecords      int
	CleanupReports   int
	EphemeralEntries int
}

// Collector polls a StatsProvider on an interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewCollector creates a collector; nothing runs until Start.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start collects once immediately, then on every tick.
func (c *Collector) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.loop()
	}
}

// Stop ends the loop and waits for an in-flight collection. Calling it
// more than once, or without Start, is safe.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) loop() {
	defer close(c.done)
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}
	s := c.provider.GetStats()

	MetadataRecords.WithLabelValues("basic").Set(float64(s.BasicRecords))
	MetadataRecords.WithLabelValues("full").Set(float64(s.FullRecords))
	CleanupReportsStored.Set(float64(s.CleanupReports))
	CacheEphemeralEntries.Set(float64(s.EphemeralEntries))

	logging.Debug("Metrics collected: basic=%d full=%d reports=%d ephemeral=%d",
		s.BasicRecords, s.FullRecords, s.CleanupReports, s.EphemeralEntries)
}
