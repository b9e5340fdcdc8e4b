/*
Package filesystem provides resilient filesystem operations for asset
libraries that commonly live on network shares.

Stat and open calls are retried with exponential backoff on ESTALE (stale
NFS file handle) errors; any other error is returned immediately.
WriteFileAtomic publishes files with write-then-rename so readers of the
preview caches never observe a partially written image or sidecar.

Metrics are reported through an Observer installed with SetObserver; the
metrics package provides the Prometheus implementation. Without an
observer nothing is recorded, which keeps tests free of global state.

	info, err := filesystem.StatWithRetry(path)
	err = filesystem.WriteFileAtomic(dst, data, 0o644)
*/
package filesystem
