package admin

import (
	"net/http"

	"github.com/seqgate/seqgate/internal/service"
)

// StatsResponse is the JSON response for GET /admin/api/stats.
type StatsResponse struct {
	service.Stats
	TrackedIdentities int `json:"tracked_identities"`
}

// handleGetStats returns outcome counters and the number of identities with
// a live rate limit window.
func (h *AdminAPIHandler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}

	if h.statsService != nil {
		resp.Stats = h.statsService.GetStats()
	}
	// Ensure maps are never null in JSON output.
	if resp.Operations == nil {
		resp.Operations = make(map[string]service.OperationStats)
	}

	if h.limiter != nil {
		resp.TrackedIdentities = h.limiter.Size()
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// handleResetStats zeroes the in-process outcome counters.
func (h *AdminAPIHandler) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if h.statsService == nil {
		h.respondError(w, http.StatusServiceUnavailable, "stats not configured")
		return
	}
	h.statsService.Reset()
	h.logger.Info("stats reset via admin API")
	w.WriteHeader(http.StatusNoContent)
}
