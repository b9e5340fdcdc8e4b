package memory

import (
	"bytes"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"asset-preview/internal/logging"
)

// DefaultMemoryRatio is the share of container memory given to the Go
// heap. The rest is left to libvips and the host's capture buffers.
const DefaultMemoryRatio = 0.85

// cgroupLimitFiles are read in order when MEMORY_LIMIT is unset: cgroup v2,
// then v1.
var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// ConfigResult reports what ConfigureFromEnv did.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", "cgroup" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// early in main, before the engine starts.
//
// Environment variables:
//   - GOMEMLIMIT: If set, this takes precedence (standard Go env var)
//   - MEMORY_LIMIT: Container memory limit in bytes (from Kubernetes Downward API).
//     When unset the cgroup limit is used, if there is one.
//   - MEMORY_RATIO: Optional ratio of memory to use for Go heap (default: 0.85)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limit, source, ok := containerLimit()
	if !ok {
		logging.Debug("No container memory limit found, GOMEMLIMIT left unset")
		return ConfigResult{Source: "none"}
	}

	ratio := memoryRatio()
	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s from %s)",
		formatBytes(goMemLimit), ratio*100, formatBytes(limit), source)

	return ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// containerLimit returns the memory limit from MEMORY_LIMIT or the cgroup.
// A malformed MEMORY_LIMIT disables configuration rather than falling back.
func containerLimit() (int64, string, bool) {
	if s := os.Getenv("MEMORY_LIMIT"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			logging.Warn("Ignoring invalid MEMORY_LIMIT %q", s)
			return 0, "", false
		}
		return n, "MEMORY_LIMIT", true
	}

	for _, path := range cgroupLimitFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		s := string(bytes.TrimSpace(raw))
		if s == "max" {
			return 0, "", false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		// v1 reports an unlimited group as a huge page-aligned number.
		if err != nil || n <= 0 || n >= 1<<60 {
			return 0, "", false
		}
		return n, "cgroup", true
	}
	return 0, "", false
}

func memoryRatio() float64 {
	s := strings.TrimSpace(os.Getenv("MEMORY_RATIO"))
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
