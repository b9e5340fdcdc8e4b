// Package watcher turns filesystem events in the asset library into the
// engine's library hooks.
//
// A Watcher recursively watches the library with fsnotify. Bursts of events
// for one path, such as the writes of a DCC save, are collapsed over a short
// debounce window; the path is then re-examined. An asset that exists is
// reported through OnAssetAdded and one that has vanished (removed or
// renamed away) through OnAssetRemoved. Directories created or moved into
// the library are watched and their assets reported.
package watcher
