package metrics

import "github.com/prometheus/client_golang/prometheus"

// labelVec creates the series for one set of label values.
type labelVec func(values ...string)

func counters(v *prometheus.CounterVec) labelVec {
	return func(values ...string) { v.WithLabelValues(values...) }
}

func histograms(v *prometheus.HistogramVec) labelVec {
	return func(values ...string) { v.WithLabelValues(values...) }
}

func gauges(v *prometheus.GaugeVec) labelVec {
	return func(values ...string) { v.WithLabelValues(values...) }
}

// touch creates the series for every combination of the label value sets,
// in label order.
func touch(vec labelVec, sets ...[]string) {
	var walk func(prefix []string, rest [][]string)
	walk = func(prefix []string, rest [][]string) {
		if len(rest) == 0 {
			vec(prefix...)
			return
		}
		for _, v := range rest[0] {
			walk(append(prefix[:len(prefix):len(prefix)], v), rest[1:])
		}
	}
	walk(nil, sets)
}

var (
	volumes   = []string{"library", "cache", "database", "unknown"}
	fsOps     = []string{"stat", "open", "read", "write"}
	outcomes  = []string{"success", "error"}
	tiers     = []string{"basic", "full"}
	dbQueries = []string{"migrate_schema", "save_record", "load_record", "delete_record",
		"list_paths", "count_records", "save_report", "load_report", "vacuum"}
)

// InitializeMetrics creates the expected label combinations so every
// series is exported from the first scrape. Call it once at startup.
func InitializeMetrics() {
	touch(histograms(FilesystemOperationDuration), volumes, fsOps)
	touch(counters(FilesystemOperationErrors), volumes, fsOps)
	for _, vec := range []labelVec{
		counters(FilesystemRetryAttempts),
		counters(FilesystemRetrySuccess),
		counters(FilesystemRetryFailures),
		counters(FilesystemStaleErrors),
		histograms(FilesystemRetryDuration),
	} {
		touch(vec, fsOps, volumes)
	}

	touch(counters(SceneSectionsTotal), []string{"import", "capture", "extract", "cleanup"}, outcomes)
	touch(counters(SessionsTotal), []string{"closed", "import_failed"})
	touch(counters(CapturesTotal), outcomes)
	touch(counters(DownscaleTotal), []string{"vips", "imaging"}, outcomes)

	touch(counters(CleanupRunsTotal), []string{"done", "failed"})
	touch(counters(CleanupPhasesTotal),
		[]string{"unlocking", "disconnecting", "deleting", "namespace_removal", "validating", "aggressive_delete"},
		outcomes)

	touch(counters(CacheLookupsTotal), []string{"durable", "ephemeral"}, []string{"hit", "miss", "stale"})
	touch(counters(CacheLookupsTotal), []string{"none"}, []string{"forced"})
	touch(counters(CacheWritesTotal), []string{"durable", "ephemeral"}, outcomes)

	touch(counters(MetadataExtractionsTotal), tiers, outcomes)
	touch(histograms(MetadataExtractionDuration), tiers)
	touch(gauges(MetadataRecords), tiers)

	touch(counters(SchedulerRequestsTotal), []string{"success", "error", "cancelled", "rejected"})
	touch(counters(WatcherEventsTotal), []string{"create", "remove", "rename", "write"})

	touch(counters(DBQueryTotal), dbQueries, outcomes)
	touch(histograms(DBQueryDuration), dbQueries)
}
