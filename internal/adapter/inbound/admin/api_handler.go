// Package admin provides the JSON admin API for seqgate.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/seqgate/seqgate/internal/config"
	"github.com/seqgate/seqgate/internal/domain/ratelimit"
	"github.com/seqgate/seqgate/internal/service"
)

// AdminAPIHandler provides JSON API endpoints for operating the gateway.
type AdminAPIHandler struct {
	statsService *service.StatsService
	limiter      ratelimit.Inspector
	windowConfig ratelimit.WindowConfig
	cfg          *config.Config
	apiKeyHash   string
	buildInfo    *BuildInfo
	logger       *slog.Logger
	startTime    time.Time
}

// AdminAPIOption configures an AdminAPIHandler dependency.
type AdminAPIOption func(*AdminAPIHandler)

// WithStatsService sets the stats service for outcome counters.
func WithStatsService(s *service.StatsService) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.statsService = s }
}

// WithRateLimiter sets the limiter whose windows are inspected and reset.
func WithRateLimiter(l ratelimit.Inspector, cfg ratelimit.WindowConfig) AdminAPIOption {
	return func(h *AdminAPIHandler) {
		h.limiter = l
		h.windowConfig = cfg
	}
}

// WithConfig sets the effective configuration served by GET /admin/api/config.
func WithConfig(cfg *config.Config) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.cfg = cfg }
}

// WithAPIKeyHash enables remote access for callers presenting a bearer key
// matching hash (Argon2id PHC format). Without it the API is localhost-only.
func WithAPIKeyHash(hash string) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.apiKeyHash = hash }
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.logger = l }
}

// WithBuildInfo sets the build version information.
func WithBuildInfo(info *BuildInfo) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.buildInfo = info }
}

// WithStartTime sets the server start time for uptime calculation.
func WithStartTime(t time.Time) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.startTime = t }
}

// NewAdminAPIHandler creates a new AdminAPIHandler with the given options.
func NewAdminAPIHandler(opts ...AdminAPIOption) *AdminAPIHandler {
	h := &AdminAPIHandler{
		logger:    slog.Default(),
		startTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns an http.Handler with all admin API routes registered.
// Every route goes through adminAuthMiddleware.
func (h *AdminAPIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/api/stats", h.handleGetStats)
	mux.HandleFunc("POST /admin/api/stats/reset", h.handleResetStats)

	mux.HandleFunc("GET /admin/api/ratelimit/{identity}", h.handleGetWindow)
	mux.HandleFunc("DELETE /admin/api/ratelimit/{identity}", h.handleResetWindow)

	mux.HandleFunc("GET /admin/api/config", h.handleGetConfig)
	mux.HandleFunc("GET /admin/api/system", h.handleSystemInfo)

	return h.adminAuthMiddleware(mux)
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *AdminAPIHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *AdminAPIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
