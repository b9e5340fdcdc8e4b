package handlers

import (
	"net/http"
	"runtime"
	"time"

	"asset-preview/internal/logging"
	"asset-preview/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse is the body of /health and /healthz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Ready   bool          `json:"ready"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
	Index   IndexHealth   `json:"index"`
	Store   StoreHealth   `json:"store"`
	Runtime RuntimeHealth `json:"runtime"`
}

// IndexHealth reports the library indexer.
type IndexHealth struct {
	Running     bool   `json:"running"`
	LastIndexed string `json:"lastIndexed,omitempty"`
	Error       string `json:"error,omitempty"`
	Assets      int64  `json:"assets"`
	Removed     int64  `json:"removed"`
	Folders     int64  `json:"folders"`
}

// StoreHealth counts persisted records and ephemeral previews.
type StoreHealth struct {
	BasicRecords   int `json:"basicRecords"`
	FullRecords    int `json:"fullRecords"`
	CleanupReports int `json:"cleanupReports"`
	CachedPreviews int `json:"cachedPreviews"`
}

// RuntimeHealth describes the process.
type RuntimeHealth struct {
	GoVersion  string `json:"goVersion"`
	CPUs       int    `json:"cpus"`
	Goroutines int    `json:"goroutines"`
}

// HealthCheck reports readiness, index progress and stored record counts.
// It answers 503 until the first index pass has finished.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.indexer.GetHealthStatus()

	resp := HealthResponse{
		Status:  statusStarting,
		Ready:   st.Ready,
		Version: startup.Version,
		Uptime:  st.Uptime,
		Index: IndexHealth{
			Running: st.Indexing,
			Error:   st.InitialIndexError,
			Assets:  st.AssetsIndexed,
			Removed: st.AssetsRemoved,
			Folders: st.FoldersIndexed,
		},
		Store: StoreHealth{CachedPreviews: h.engine.Cache().Len()},
		Runtime: RuntimeHealth{
			GoVersion:  runtime.Version(),
			CPUs:       runtime.NumCPU(),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if st.Ready {
		resp.Status = statusHealthy
	}
	if !st.LastIndexed.IsZero() {
		resp.Index.LastIndexed = st.LastIndexed.Format(time.RFC3339)
	}
	if st.InitialIndexError != "" {
		resp.Status = statusDegraded
	}

	if h.catalog != nil {
		if counts, err := h.catalog.Counts(r.Context()); err != nil {
			logging.Warn("Health: failed to count records: %v", err)
			resp.Status = statusDegraded
		} else {
			resp.Store.BasicRecords = counts.Basic
			resp.Store.FullRecords = counts.Full
			resp.Store.CleanupReports = counts.Reports
		}
	}

	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	writeProbe(w, r, code, resp)
}

// LivenessCheck answers 200 for as long as the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck answers 200 once the first index pass has finished.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.indexer.IsReady() {
		writeProbe(w, r, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeProbe(w, r, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// writeProbe writes a JSON probe response. HEAD requests get headers only.
func writeProbe(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, body)
	}
}
