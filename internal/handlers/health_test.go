package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"asset-preview/internal/database"
	"asset-preview/internal/scene/memscene"
)

type failingCatalog struct{}

func (failingCatalog) Counts(context.Context) (database.RecordCounts, error) {
	return database.RecordCounts{}, errors.New("database is locked")
}

func TestHealthCheckBeforeIndex(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != statusStarting || resp.Ready {
		t.Errorf("status = %q ready = %v", resp.Status, resp.Ready)
	}
	if resp.Runtime.GoVersion == "" || resp.Runtime.CPUs == 0 {
		t.Error("system info missing")
	}
}

func TestHealthCheckAfterIndex(t *testing.T) {
	f := newFixture(t)
	f.write(t, "cube.obj", memscene.CubeOBJ)
	if err := f.indexer.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	get(f.h.GetPreview, "/api/preview/cube.obj", "cube.obj")

	w := httptest.NewRecorder()
	f.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("status = %q ready = %v", resp.Status, resp.Ready)
	}
	if resp.Index.Assets != 1 || resp.Store.BasicRecords != 1 || resp.Store.CleanupReports != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Store.CachedPreviews == 0 {
		t.Error("expected the captured preview in the cache")
	}
	if resp.Index.LastIndexed == "" || resp.Index.Running {
		t.Error("lastIndexed missing")
	}
}

func TestHealthCheckDegradedWithoutCounts(t *testing.T) {
	f := newFixture(t)
	if err := f.indexer.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.h.catalog = failingCatalog{}

	w := httptest.NewRecorder()
	f.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if resp := decode[HealthResponse](t, w); resp.Status != statusDegraded {
		t.Errorf("status = %q, want %q", resp.Status, statusDegraded)
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()

	h := &Handlers{}

	w := httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodGet, "/livez", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "alive" {
		t.Errorf("body = %v", body)
	}

	head := httptest.NewRecorder()
	h.LivenessCheck(head, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if head.Code != http.StatusOK || head.Body.Len() != 0 {
		t.Errorf("HEAD: status %d, %d body bytes", head.Code, head.Body.Len())
	}
}

func TestReadinessCheck(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before index: status %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "not_ready" {
		t.Errorf("body = %v", body)
	}

	if err := f.indexer.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	f.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("after index: status %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("probes must not be cached")
	}
}
