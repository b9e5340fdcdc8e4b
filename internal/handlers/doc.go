// Package handlers provides the HTTP API of the preview service.
//
// It includes handlers for:
//   - Previews, falling back to a generic icon when none can be produced
//   - Basic and full metadata records
//   - Cleanup reports of the most recent preview session per asset
//   - Library notifications: added, brought into the workspace, removed
//   - Health checks, version information and Prometheus metrics
//
// Asset paths in URLs and request bodies are resolved against the library
// directory and rejected when they escape it.
package handlers
