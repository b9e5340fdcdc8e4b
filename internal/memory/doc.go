// Package memory keeps the preview service inside its container memory
// limit.
//
// # Configuration
//
// [ConfigureFromEnv] sets GOMEMLIMIT from the container limit. Call it first
// in main:
//
//   - GOMEMLIMIT: Standard Go variable; takes precedence when set
//   - MEMORY_LIMIT: Container memory limit in bytes, usually from the
//     Kubernetes Downward API (resourceFieldRef: limits.memory)
//   - MEMORY_RATIO: Share of the container limit given to the Go heap (default 0.85)
//
// Without MEMORY_LIMIT the cgroup limit is read (memory.max on cgroup v2,
// memory.limit_in_bytes on v1). An unlimited cgroup leaves GOMEMLIMIT unset.
//
// GOMEMLIMIT only bounds the Go heap. libvips buffers and the host's
// viewport readback live outside it, which is what the remaining share is
// for. Lower MEMORY_RATIO when large scenes are captured at a big master
// size.
//
// # Backpressure
//
// A [Monitor] samples heap usage through runtime/metrics and pauses preview generation once usage
// crosses the critical water mark, resuming below the high water mark.
// Scheduler workers call [Monitor.WaitIfPaused] before each request:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
package memory
