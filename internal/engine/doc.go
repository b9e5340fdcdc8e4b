// Package engine is the composition root of the preview core.
//
// It owns one session manager, capturer, cache, metadata store and
// scheduler per host and exposes the operations the library and UI layers
// call: preview and metadata requests, cleanup reports, and the library
// hooks for assets being added, brought into the workspace and removed.
//
// Failures degrade rather than propagate: a preview that cannot be produced
// yields an empty path (show a generic icon), and a full metadata request
// that cannot import falls back to the basic record.
package engine
