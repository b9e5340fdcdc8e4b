package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })
	return &buf
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := record(w)

	if rec.status != http.StatusOK || rec.wrote {
		t.Fatal("unexpected initial state")
	}
	if record(rec) != rec {
		t.Error("record should not wrap a recorder twice")
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.status != http.StatusNotFound || w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want first WriteHeader to win", rec.status)
	}

	n, err := rec.Write([]byte("missing"))
	if err != nil || n != 7 || rec.size != 7 {
		t.Errorf("Write = %d, %v; size=%d", n, err, rec.size)
	}
	if rec.Unwrap() != w {
		t.Error("Unwrap should return the wrapped writer")
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"props/cube.obj", "props/cube.obj"},
		{"evil\nline", "evil line"},
		{"a\r\nb", "a  b"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tok", "tab\tok"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoggingConfigSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	if !cfg.skip("/metrics") {
		t.Error("expected /metrics to be skipped")
	}
	if cfg.skip("/health") {
		t.Error("health checks are logged by default")
	}
	cfg.LogHealthChecks = false
	if !cfg.skip("/health") || cfg.skip("/healthcheck-asset.obj") || cfg.skip("/api/preview/a.obj") {
		t.Error("unexpected skip decision")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 10.0.0.9 "}, "1.2.3.4:5", "10.0.0.9"},
		{"real ip", map[string]string{"X-Real-IP": "172.16.0.1"}, "1.2.3.4:5", "172.16.0.1"},
		{"remote addr", nil, "192.168.1.10:5000", "192.168.1.10"},
		{"remote ipv6", nil, "[::1]:5000", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("plain field changed: %q", got)
	}
	if got := escapeW3CField(`Asset Browser "beta"`); got != `"Asset Browser ""beta"""` {
		t.Errorf("escaped = %q", got)
	}
	if got := w3cField(""); got != "-" {
		t.Errorf("empty field = %q, want -", got)
	}
}

func TestLoggerWritesW3CLine(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Preview-Source", "generic")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("icon"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/preview/props/crate.obj?size=128", nil)
	req.Header.Set("User-Agent", "asset-browser/2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{"GET", "/api/preview/props/crate.obj", "size=128", " 202 4 ", "asset-browser/2", "generic"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestLoggerSkipsMetrics(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/library/added", "/api/library/added"},
		{"/api/preview/props/crate.obj", "/api/preview/props/{path}"},
		{"/api/preview/a/b/c/d.obj", "/api/preview/a/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/preview/{path:.*}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/preview/{path:.*}", "404")
	before := testutil.ToFloat64(counter)

	for _, p := range []string{"/api/preview/a.obj", "/api/preview/deep/nested/b.fbx"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", p, rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("route counter moved by %v, want 2", got)
	}

	healthBefore := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")) != healthBefore {
		t.Error("health checks must not be recorded")
	}
	if testutil.ToFloat64(metrics.HTTPRequestsInFlight) != 0 {
		t.Error("in-flight gauge not released")
	}
}
