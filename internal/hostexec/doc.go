// Package hostexec serialises access to the host scene graph.
//
// The scene graph is one globally mutable resource. Every section that
// touches it (import, capture, extraction, cleanup, state restore) runs
// through an Executor, which guarantees that at most one such section is
// in progress at a time. Two strategies are provided:
//
//   - Serial: the calling goroutine runs the section after taking a
//     single-slot lock.
//   - Loop: sections are handed to one dedicated goroutine pinned to its OS
//     thread, the shape required by hosts whose API may only be called
//     from their main thread.
//
// Waiting for the executor honours context cancellation. Once a section has
// started it runs to completion; host operations cannot be interrupted.
// No ordering is promised between waiters.
package hostexec
