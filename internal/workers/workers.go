package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Pool describes how one background pool is sized.
type Pool struct {
	// Env overrides the computed size when it holds a positive integer.
	Env string
	// PerCPU scales GOMAXPROCS. Ignored when Fixed is set.
	PerCPU float64
	// Fixed is a size that does not follow the CPU count.
	Fixed int
	// Limit caps the result, including overrides. 0 means no cap.
	Limit int
}

var (
	// Scheduler runs preview and workspace requests: host-serialized
	// import and capture mixed with downscaling and cache writes.
	Scheduler = Pool{Env: "PREVIEW_WORKERS", PerCPU: 1.5, Limit: 4}

	// Indexer classifies files during the library walk. Three stays
	// polite on network shares.
	Indexer = Pool{Env: "INDEX_WORKERS", Fixed: 3}
)

// Size returns the number of workers, never less than one.
func (p Pool) Size() int {
	n := p.computed()
	if p.Env != "" {
		if v, err := strconv.Atoi(os.Getenv(p.Env)); err == nil && v > 0 {
			n = v
		}
	}
	if p.Limit > 0 && n > p.Limit {
		n = p.Limit
	}
	return n
}

func (p Pool) computed() int {
	if p.Fixed > 0 {
		return p.Fixed
	}
	return max(1, int(float64(runtime.GOMAXPROCS(0))*p.PerCPU))
}
