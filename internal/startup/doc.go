// Package startup handles service initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is resolved by [Load] from three layers, later layers
// winning: built-in defaults, an optional TOML file named by PREVIEW_CONFIG,
// and environment variables. [LoadFile] reads a named file instead of
// PREVIEW_CONFIG, which is how previewctl's --config flag works.
// [LoadConfig] additionally prints the banner and prepares the directories.
//
// Environment variables:
//
//   - LIBRARY_DIR: Root of the asset library (default: /library)
//   - CACHE_DIR: Ephemeral preview cache and generic icons (default: /cache)
//   - DATABASE_DIR: Metadata and cleanup report database (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - MASTER_SIZE: Edge length of the master capture in pixels (default: 512)
//   - PREVIEW_SIZES: Comma-separated preview sizes (default: 64,128,256)
//   - INDEX_INTERVAL: Full library re-index interval (default: 30m)
//   - LIBRARY_POLL_INTERVAL: Cheap change detection interval, 0 disables (default: 30s)
//   - WATCH_LIBRARY: Watch the library with fsnotify (default: true)
//   - HOST_EXECUTOR: "serial" or "loop" host access strategy (default: serial)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// The TOML file uses the same settings grouped into [paths], [server],
// [preview] and [library] tables; unknown keys are rejected.
//
// # Directory Setup
//
//   - Cache and database directories: Required, created and checked for write access
//   - Library directory: Created if missing, problems only warned about
//
// Version, Commit and BuildTime are set with -ldflags -X at build time and
// reported by [GetBuildInfo] and the /version endpoint.
//
// The Log* functions print the sectioned startup and shutdown log. [GetRoutes]
// lists the router's routes; [LogHTTPRoutes] prints them at debug level.
package startup
