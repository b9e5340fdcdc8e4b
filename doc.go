// Package main provides the entry point for the asset preview service.
//
// The service generates thumbnail previews and metadata for 3D assets in a
// library directory by importing each asset into an isolated namespace of
// the host scene, capturing it, extracting what it needs and removing
// every trace of it again. The host scene is never left dirty: each
// session ends with an escalating cleanup whose report is stored.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Defaults, optional TOML file, then environment
//  3. Database Initialization: Opens the SQLite metadata and report catalog
//  4. Component Initialization:
//     - libvips for downscaling, with an imaging fallback
//     - Host executor serializing every scene-graph section
//     - Memory monitor holding scheduler workers back under pressure
//     - Preview engine with its scheduler and main-loop dispatcher
//     - Indexer and fsnotify watcher keeping basic metadata current
//     - Metrics collector
//  5. HTTP Server Setup: Routes, logging and metrics middleware
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, drains queued requests
//
// # HTTP API
//
//   - GET /api/preview/{path}?size=N&force=true: PNG preview, or the generic
//     icon for its file type when capture fails. X-Preview-Source tells which.
//   - GET /api/metadata/{path}?tier=basic|full
//   - GET /api/cleanup/{path}: latest cleanup report
//   - POST /api/library/added, POST /api/library/workspace, DELETE /api/library/{path}
//   - POST /api/reindex
//   - /health, /healthz, /livez, /readyz, /version, /metrics
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout)
//  2. Stop the library watcher and the indexer
//  3. Release paused workers, drain the scheduler and the dispatcher
//  4. Close the host executor
//  5. Stop the metrics collector and close the database
//
// # Build Requirements
//
// CGO is required for SQLite and libvips:
//
//	go build -o asset-preview .
//
// The previewctl command in cmd/previewctl runs the same engine without the
// server.
package main
