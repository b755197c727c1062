package admin

import (
	"math"
	"net/http"
	"time"

	"github.com/seqgate/seqgate/internal/domain/ratelimit"
)

// WindowResponse is the JSON response for GET /admin/api/ratelimit/{identity}.
type WindowResponse struct {
	Identity        string    `json:"identity"`
	WindowStart     time.Time `json:"window_start"`
	Count           int       `json:"count"`
	Limit           int       `json:"limit"`
	Remaining       int       `json:"remaining"`
	ResetsInSeconds int64     `json:"resets_in_seconds"`
	Expired         bool      `json:"expired"`
}

func (h *AdminAPIHandler) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil {
		h.respondError(w, http.StatusServiceUnavailable, "rate limiter not configured")
		return
	}

	identity := ratelimit.ClientIdentity(r.PathValue("identity"))
	st, ok := h.limiter.State(identity)
	if !ok {
		h.respondError(w, http.StatusNotFound, "identity not tracked")
		return
	}

	now := time.Now()
	expired := st.Expired(now, h.windowConfig.Window)
	resp := WindowResponse{
		Identity:    string(identity),
		WindowStart: st.WindowStart.UTC(),
		Count:       st.Count,
		Limit:       h.windowConfig.Limit,
		Expired:     expired,
	}
	if !expired {
		resp.Remaining = max(h.windowConfig.Limit-st.Count, 0)
		reset := st.WindowStart.Add(h.windowConfig.Window).Sub(now)
		resp.ResetsInSeconds = int64(math.Ceil(max(reset, 0).Seconds()))
	} else {
		// The next request opens a fresh window.
		resp.Remaining = h.windowConfig.Limit
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *AdminAPIHandler) handleResetWindow(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil {
		h.respondError(w, http.StatusServiceUnavailable, "rate limiter not configured")
		return
	}

	identity := ratelimit.ClientIdentity(r.PathValue("identity"))
	if !h.limiter.Reset(identity) {
		h.respondError(w, http.StatusNotFound, "identity not tracked")
		return
	}
	h.logger.Info("rate limit window reset via admin API", "identity", identity)
	w.WriteHeader(http.StatusNoContent)
}
