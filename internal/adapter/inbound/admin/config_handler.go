package admin

import (
	"net/http"

	"gopkg.in/yaml.v3"
)

// handleGetConfig returns the effective configuration as YAML with secrets
// masked.
func (h *AdminAPIHandler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		h.respondError(w, http.StatusServiceUnavailable, "configuration not available")
		return
	}

	out, err := yaml.Marshal(h.cfg.Redacted())
	if err != nil {
		h.logger.Error("failed to marshal config", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to render configuration")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
