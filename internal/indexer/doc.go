// Package indexer keeps basic metadata for every asset in the library.
//
// The indexer walks the configured library directory, classifies each file
// and hands every 3D asset to the engine's OnAssetAdded hook, which records
// the cheap tier of metadata without touching the host application. Records
// for assets that disappeared since the last walk are dropped through
// OnAssetRemoved, which also clears their cached previews.
//
// The indexer operates in multiple modes:
//   - Initial index: Full walk on service startup
//   - Periodic index: Configurable interval-based re-indexing
//   - Change polling: Cheap root and top-level directory checks that
//     trigger a re-index
//   - Manual trigger: On-demand re-indexing via the API
//
// One goroutine started by Start owns both tickers; a walk already in
// progress makes later triggers no-ops.
//
// Hidden files and directories (prefixed with '.') are excluded.
package indexer
