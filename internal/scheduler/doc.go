// Package scheduler runs preview and metadata generation off the caller's
// thread.
//
// A fixed pool of workers takes requests from a bounded FIFO queue. Results
// are never delivered on a worker: they are handed to a Dispatcher, which
// decides on which logical thread callbacks run. MainLoop runs them on one
// dedicated goroutine, Queue defers them until the owner calls Drain (for
// hosts that pump their own idle loop), and Immediate runs them inline for
// tests.
package scheduler
