package http

import (
	"net/http"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record Prometheus metrics.
// It records:
// - request_duration_seconds histogram (by route)
// - requests_total counter (by route and status)
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for /metrics and /health endpoints
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap ResponseWriter to capture status code
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := routeLabel(r.URL.Path)
			metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(route, statusToLabel(wrapped.status)).Inc()
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeLabel maps a request path onto its route pattern so that path
// parameters never become label values.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/search/genus/"):
		return RouteSearchGenus
	case strings.HasPrefix(path, "/search/author/"):
		return RouteSearchAuthor
	case strings.HasPrefix(path, "/details/"):
		return RouteDetails
	case strings.HasPrefix(path, "/admin/api/"):
		return "/admin/api"
	default:
		return "other"
	}
}

// statusToLabel converts HTTP status code to label value
func statusToLabel(code int) string {
	switch {
	case code >= 200 && code < 400:
		return "ok"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 400 && code < 500:
		return "client_error"
	default:
		return "error"
	}
}
