package handlers

import (
	"net/http"

	"asset-preview/internal/logging"
	"asset-preview/internal/startup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VersionResponse is the build information plus the preview sizes clients
// may ask for.
type VersionResponse struct {
	startup.BuildInfo
	MasterSize   int   `json:"masterSize,omitempty"`
	PreviewSizes []int `json:"previewSizes,omitempty"`
}

// GetVersion returns the build and preview size information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	resp := VersionResponse{BuildInfo: startup.GetBuildInfo(), PreviewSizes: h.sizes}
	if h.engine != nil {
		resp.MasterSize = h.engine.MasterSize()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}

// MetricsHandler serves the default registry. Collection errors are logged
// and the remaining metrics still served.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      metricsErrorLog{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

type metricsErrorLog struct{}

func (metricsErrorLog) Println(v ...interface{}) {
	logging.Warn("Metrics collection: %v", v...)
}
