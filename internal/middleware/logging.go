package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/logging"
)

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything except /metrics scrapes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

func (c LoggingConfig) skip(path string) bool {
	if prefixes(c.SkipPaths).match(path) {
		return true
	}
	return !c.LogHealthChecks && isHealthCheck(path)
}

// Logger writes one W3C Extended Log Format line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent) x-preview-source
//
// x-preview-source echoes the X-Preview-Source response header, "capture"
// or "generic" on preview responses.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			logging.Printf("%s", w3cLine(time.Now().UTC(), r, rec, time.Since(start)))
		})
	}
}

func w3cLine(now time.Time, r *http.Request, rec *statusRecorder, took time.Duration) string {
	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		w3cField(getClientIP(r)),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		w3cField(r.URL.RawQuery),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.size, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		w3cField(r.Header.Get("User-Agent")),
		w3cField(rec.Header().Get("X-Preview-Source")),
	}
	return strings.Join(fields, " ")
}

// w3cField sanitizes s and quotes it when needed. Empty fields become "-".
func w3cField(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return escapeW3CField(s)
}

// sanitizeLogField drops control characters so request data cannot forge
// log lines. Line breaks become spaces; tabs survive.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r < 0x20 && r != '\t':
			return -1
		}
		return r
	}, s)
}

// escapeW3CField quotes a field containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
