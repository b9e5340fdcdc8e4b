// Package metrics provides Prometheus instrumentation for the preview engine.
//
// All metrics are prefixed with "preview_engine_" and registered through
// promauto, so importing the package is enough to export them.
//
// # Metric Categories
//
// ## Scene graph access
//
//   - SceneLockWait: time spent waiting for exclusive host access
//   - SceneSectionsTotal: serialized sections by kind (import, capture, extract, cleanup)
//
// ## Sessions and capture
//
//   - SessionsOpen, SessionsTotal, SessionSlotWait, ImportDuration
//   - CapturesTotal, CaptureDuration, DownscaleTotal
//
// ## Cleanup
//
//   - CleanupRunsTotal by terminal state, CleanupPhasesTotal by phase/status
//   - CleanupEscalations, CleanupNodesUnlocked, CleanupConnectionsBroken
//
// ## Cache and metadata
//
//   - CacheLookupsTotal by tier/result, CacheWritesTotal, CacheInvalidationsTotal
//   - MetadataExtractionsTotal, MetadataExtractionDuration, MetadataRecords
//
// ## Scheduler, memory, indexer, filesystem, HTTP, database
//
// Standard operational metrics; see metrics.go.
//
// Gauges derived from the database are refreshed by a Collector, and
// InitializeMetrics pre-populates label combinations so dashboards show
// zeroes rather than gaps after a restart.
package metrics
