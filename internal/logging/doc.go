// Package logging provides the leveled logger used throughout the preview
// engine.
//
// Levels, lowest to highest:
//   - DEBUG: per-node cleanup steps, cache lookups, lock waits
//   - INFO: session lifecycle, generated previews, startup
//   - WARN: degraded behaviour (fallback icons, cache write failures)
//   - ERROR: cleanup failures and other conditions worth investigating
//   - FATAL: startup errors that terminate the process
//
// The level comes from the DEBUG or LOG_LEVEL environment variables and can
// be overridden with SetLevel. Component loggers created with For prefix
// every line with the component name, e.g. "[INFO] [cleanup] ...".
package logging
