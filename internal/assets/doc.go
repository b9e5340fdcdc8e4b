// Package assets identifies the source files the preview engine works on.
//
// An AssetRef is an immutable snapshot of a file: absolute path, content
// fingerprint and coarse type. Fingerprints are size+mtime by default; a
// BLAKE2b content hash can be requested where mtimes are unreliable (e.g.
// files restored from archives). Cache entries and metadata records are
// keyed by fingerprint, so a changed file invalidates them implicitly.
package assets
