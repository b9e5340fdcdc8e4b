package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scene graph access metrics
var (
	SceneLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_engine_scene_lock_wait_seconds",
			Help:    "Time spent waiting for exclusive access to the host scene graph",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	SceneSectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_scene_sections_total",
			Help: "Total number of serialized scene graph sections by kind",
		},
		[]string{"section", "status"},
	)
)

// Session metrics
var (
	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_sessions_open",
			Help: "Number of import sessions currently open",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_sessions_total",
			Help: "Total number of import sessions by outcome",
		},
		[]string{"outcome"}, // "closed", "import_failed"
	)

	SessionSlotWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_engine_session_slot_wait_seconds",
			Help:    "Time a request waited for another session on the same asset to close",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_import_duration_seconds",
			Help:    "Duration of isolated asset imports",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)
)

// Capture metrics
var (
	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_captures_total",
			Help: "Total number of preview captures",
		},
		[]string{"status"},
	)

	CaptureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_engine_capture_duration_seconds",
			Help:    "Preview capture duration in seconds, including view restore",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	DownscaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_downscale_total",
			Help: "Total number of downscaled preview copies by backend",
		},
		[]string{"backend", "status"}, // backend: "vips", "imaging"
	)
)

// Cleanup metrics
var (
	CleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_cleanup_runs_total",
			Help: "Total number of cleanup runs by terminal state",
		},
		[]string{"state"}, // "done", "failed"
	)

	CleanupPhasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_cleanup_phases_total",
			Help: "Total number of cleanup phases executed",
		},
		[]string{"phase", "status"},
	)

	CleanupEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_cleanup_escalations_total",
			Help: "Total number of cleanup runs that entered aggressive delete",
		},
	)

	CleanupNodesUnlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_cleanup_nodes_unlocked_total",
			Help: "Total number of locked nodes force-unlocked during cleanup",
		},
	)

	CleanupConnectionsBroken = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_cleanup_connections_broken_total",
			Help: "Total number of singleton connections broken during cleanup",
		},
	)

	CleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_engine_cleanup_duration_seconds",
			Help:    "Cleanup duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_cache_lookups_total",
			Help: "Total number of preview cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: "durable", "ephemeral", "none"; result: "hit", "miss", "stale", "forced"
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_cache_writes_total",
			Help: "Total number of preview cache writes by tier and status",
		},
		[]string{"tier", "status"},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_cache_invalidations_total",
			Help: "Total number of cache invalidations",
		},
	)

	CacheEphemeralEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_cache_ephemeral_entries",
			Help: "Number of entries in the ephemeral generated-icon cache",
		},
	)
)

// Metadata metrics
var (
	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_metadata_extractions_total",
			Help: "Total number of metadata extractions by tier and status",
		},
		[]string{"tier", "status"},
	)

	MetadataExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_metadata_extraction_duration_seconds",
			Help:    "Metadata extraction duration by tier",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"tier"},
	)

	MetadataRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "preview_engine_metadata_records",
			Help: "Number of persisted metadata records by tier",
		},
		[]string{"tier"},
	)

	CleanupReportsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_cleanup_reports_stored",
			Help: "Number of persisted cleanup reports",
		},
	)
)

// Scheduler metrics
var (
	SchedulerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_scheduler_requests_total",
			Help: "Total number of generation requests by result",
		},
		[]string{"result"}, // "success", "error", "cancelled", "rejected"
	)

	SchedulerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_scheduler_queue_depth",
			Help: "Number of generation requests waiting for a worker",
		},
	)

	SchedulerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_scheduler_in_flight",
			Help: "Number of generation requests being executed",
		},
	)

	SchedulerWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_scheduler_workers",
			Help: "Number of scheduler worker goroutines",
		},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_memory_paused",
			Help: "1 while preview generation is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_memory_gc_pauses_total",
			Help: "Times generation was paused and a GC forced",
		},
	)
)

// Library indexer and watcher metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_indexer_runs_total",
			Help: "Total number of library index runs",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_indexer_last_run_duration_seconds",
			Help: "Duration of the last library index run in seconds",
		},
	)

	IndexerAssetsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_indexer_assets_processed_total",
			Help: "Total number of assets processed by the library indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_indexer_errors_total",
			Help: "Total number of library indexer errors",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_engine_indexer_parallel_workers",
			Help: "Number of workers used by the last library walk",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_watcher_events_total",
			Help: "Total number of library watcher events by operation",
		},
		[]string{"op"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_engine_watcher_errors_total",
			Help: "Total number of library watcher errors",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_filesystem_retry_attempts_total",
			Help: "Filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_engine_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_engine_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "preview_engine_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
