package metrics

import "asset-preview/internal/filesystem"

// FilesystemObserver records filesystem events into the Filesystem*
// collectors.
type FilesystemObserver struct{}

// NewFilesystemObserver returns the observer main installs with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return FilesystemObserver{}
}

// Observe implements filesystem.Observer.
func (FilesystemObserver) Observe(e filesystem.Event) {
	seconds := e.Duration.Seconds()
	FilesystemOperationDuration.WithLabelValues(e.Volume, e.Op).Observe(seconds)
	if e.Err != nil {
		FilesystemOperationErrors.WithLabelValues(e.Volume, e.Op).Inc()
	}
	if e.Stale == 0 {
		return
	}

	FilesystemStaleErrors.WithLabelValues(e.Op, e.Volume).Add(float64(e.Stale))
	if e.Retried() {
		FilesystemRetryAttempts.WithLabelValues(e.Op, e.Volume).Add(float64(e.Attempts - 1))
		FilesystemRetryDuration.WithLabelValues(e.Op, e.Volume).Observe(seconds)
	}
	switch {
	case e.Exhausted:
		FilesystemRetryFailures.WithLabelValues(e.Op, e.Volume).Inc()
	case e.Err == nil:
		FilesystemRetrySuccess.WithLabelValues(e.Op, e.Volume).Inc()
	}
}
