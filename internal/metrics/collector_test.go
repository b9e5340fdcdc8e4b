package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCollectorCollect(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		BasicRecords:     12,
		FullRecords:      3,
		CleanupReports:   4,
		EphemeralEntries: 20,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(MetadataRecords.WithLabelValues("basic")); got != 12 {
		t.Errorf("basic records = %v, want 12", got)
	}
	if got := testutil.ToFloat64(MetadataRecords.WithLabelValues("full")); got != 3 {
		t.Errorf("full records = %v, want 3", got)
	}
	if got := testutil.ToFloat64(CleanupReportsStored); got != 4 {
		t.Errorf("cleanup reports = %v, want 4", got)
	}
	if got := testutil.ToFloat64(CacheEphemeralEntries); got != 20 {
		t.Errorf("ephemeral entries = %v, want 20", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect() // must not panic
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	calls := provider.callCount()
	if calls < 2 {
		t.Errorf("expected at least 2 collections, got %d", calls)
	}
	time.Sleep(30 * time.Millisecond)
	if provider.callCount() != calls {
		t.Error("collector kept running after Stop")
	}
}

func TestCollectorStopWithoutStart(t *testing.T) {
	c := NewCollector(&mockStatsProvider{}, time.Hour)
	c.Stop()
}

func TestStatsFunc(t *testing.T) {
	c := NewCollector(StatsFunc(func() Stats { return Stats{FullRecords: 7} }), time.Hour)
	c.collect()
	if got := testutil.ToFloat64(MetadataRecords.WithLabelValues("full")); got != 7 {
		t.Errorf("full records = %v, want 7", got)
	}
}
