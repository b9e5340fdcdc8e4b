package handlers

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"slices"
	"strings"
	"testing"

	_ "asset-preview/internal/metrics" // registers the engine collectors
	"asset-preview/internal/startup"
)

func TestGetVersion(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	info := decode[VersionResponse](t, w)
	if info.Version != startup.Version || info.GoVersion != runtime.Version() {
		t.Errorf("build info = %+v", info.BuildInfo)
	}
	if info.MasterSize != 128 || !slices.Equal(info.PreviewSizes, []int{64, 128}) {
		t.Errorf("sizes = %d %v", info.MasterSize, info.PreviewSizes)
	}
}

func TestGetVersionWithoutEngine(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	(&Handlers{}).GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))
	if info := decode[VersionResponse](t, w); info.MasterSize != 0 || info.Version == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	(&Handlers{}).MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, metric := range []string{"go_goroutines", "preview_engine_scheduler_workers"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics missing %q", metric)
		}
	}
}
