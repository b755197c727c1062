package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	json "github.com/goccy/go-json"

	"github.com/seqgate/seqgate/internal/domain/ratelimit"
	"github.com/seqgate/seqgate/internal/service"
)

// healthCheckTimeout bounds each named dependency check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// CheckFunc checks one external dependency.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthChecker verifies component health.
type HealthChecker struct {
	limiter ratelimit.Inspector
	stats   *service.StatsService
	checks  []namedCheck
	version string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(limiter ratelimit.Inspector, stats *service.StatsService, version string) *HealthChecker {
	return &HealthChecker{
		limiter: limiter,
		stats:   stats,
		version: version,
	}
}

// AddCheck registers a dependency check. A failing check marks the gateway
// unhealthy.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.checks = append(h.checks, namedCheck{name: name, fn: fn})
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	// Size() takes every shard lock; if this hangs, we have a problem
	if h.limiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d identities", h.limiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	if h.stats != nil {
		st := h.stats.GetStats()
		checks["stats"] = fmt.Sprintf("ok: %d admitted, %d refused", st.Admitted, st.RateLimited)
	} else {
		checks["stats"] = "not configured"
	}

	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.fn(cctx)
		cancel()
		if err != nil {
			checks[c.name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[c.name] = "ok"
	}

	// Add Go runtime info
	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
