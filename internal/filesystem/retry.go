package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"asset-preview/internal/logging"
)

// Retry retries operations that fail with a stale NFS file handle. Any
// other error ends the operation at once.
type Retry struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Volumes labels events; nil falls back to the default resolver.
	Volumes *VolumeResolver
}

// DefaultRetry is three retries backing off from 50ms to 500ms.
func DefaultRetry() Retry {
	return Retry{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (r Retry) volume(path string) string {
	if r.Volumes != nil {
		return r.Volumes.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

func (r Retry) nextBackoff(cur time.Duration) time.Duration {
	if cur *= 2; cur > r.MaxBackoff {
		return r.MaxBackoff
	}
	return cur
}

func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

func run[T any](r Retry, op, path string, fn func() (T, error)) (T, error) {
	ev := Event{Volume: r.volume(path), Op: op}
	start := time.Now()
	defer func() {
		ev.Duration = time.Since(start)
		emit(ev)
	}()

	backoff := r.InitialBackoff
	for {
		ev.Attempts++
		v, err := fn()
		ev.Err = err
		switch {
		case err == nil:
			if ev.Retried() {
				logging.Info("NFS %s of %s recovered after %d stale handles", op, path, ev.Stale)
			}
			return v, nil
		case !isStale(err):
			return v, err
		}

		ev.Stale++
		if ev.Stale > r.MaxRetries {
			ev.Exhausted = true
			logging.Warn("NFS %s of %s still stale after %d retries: %v", op, path, r.MaxRetries, err)
			return v, err
		}
		logging.Debug("NFS %s of %s: stale handle, retry %d/%d in %v", op, path, ev.Stale, r.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = r.nextBackoff(backoff)
	}
}

// Stat is os.Stat under r.
func (r Retry) Stat(path string) (os.FileInfo, error) {
	return run(r, "stat", path, func() (os.FileInfo, error) { return os.Stat(path) })
}

// Open is os.Open under r.
func (r Retry) Open(path string) (*os.File, error) {
	return run(r, "open", path, func() (*os.File, error) { return os.Open(path) })
}

// ReadFile is os.ReadFile under r.
func (r Retry) ReadFile(path string) ([]byte, error) {
	return run(r, "read", path, func() ([]byte, error) { return os.ReadFile(path) })
}

// StatWithRetry stats path with DefaultRetry.
func StatWithRetry(path string) (os.FileInfo, error) { return DefaultRetry().Stat(path) }

// OpenWithRetry opens path with DefaultRetry.
func OpenWithRetry(path string) (*os.File, error) { return DefaultRetry().Open(path) }

// ReadFileWithRetry reads path with DefaultRetry.
func ReadFileWithRetry(path string) ([]byte, error) { return DefaultRetry().ReadFile(path) }
