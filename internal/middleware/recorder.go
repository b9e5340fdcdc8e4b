package middleware

import (
	"net/http"
	"strings"
)

// statusRecorder remembers the status and body size a handler produced.
// Both middlewares wrap the writer with it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
	wrote  bool
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.wrote {
		return
	}
	rec.status, rec.wrote = code, true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wrote = true
	n, err := rec.ResponseWriter.Write(b)
	rec.size += int64(n)
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// prefixes matches request paths against a list of path prefixes.
type prefixes []string

func (p prefixes) match(path string) bool {
	for _, prefix := range p {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

var healthPaths = prefixes{"/health", "/healthz", "/livez", "/readyz"}

func isHealthCheck(path string) bool {
	for _, p := range healthPaths {
		if path == p {
			return true
		}
	}
	return false
}
