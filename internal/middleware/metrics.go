package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/metrics"

	"github.com/gorilla/mux"
)

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape endpoint and health checks.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: append([]string{"/metrics"}, healthPaths...),
	}
}

// Metrics records request counts, latency and in-flight requests. Install
// it with Router.Use so requests are labelled by route template and asset
// paths never become label values.
func Metrics(config MetricsConfig) mux.MiddlewareFunc {
	skip := prefixes(config.SkipPaths)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel is the matched route template, or a truncated path when the
// handler runs outside a router.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath keeps three segments and folds the rest into {path}.
func normalizePath(path string) string {
	parts := strings.SplitN(path, "/", 5)
	if len(parts) < 5 {
		return path
	}
	return strings.Join(append(parts[:4], "{path}"), "/")
}
