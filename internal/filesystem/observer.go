package filesystem

import "time"

// Event describes one completed filesystem operation, retries included.
type Event struct {
	Volume    string
	Op        string // "stat", "open", "read" or "write"
	Duration  time.Duration
	Err       error
	Attempts  int // 1 when the first try settled it
	Stale     int // ESTALE errors seen along the way
	Exhausted bool
}

// Retried reports whether the operation needed more than one attempt.
func (e Event) Retried() bool { return e.Attempts > 1 }

// Observer receives an Event for every operation. The metrics package
// provides the Prometheus implementation; filesystem cannot import it.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

var defaultObserver Observer

// SetObserver installs the package-level observer. nil disables recording.
func SetObserver(o Observer) {
	defaultObserver = o
}

func emit(e Event) {
	if defaultObserver != nil {
		defaultObserver.Observe(e)
	}
}
