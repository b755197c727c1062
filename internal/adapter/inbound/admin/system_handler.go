package admin

import (
	"net/http"
	"runtime"
	"time"
)

// BuildInfo holds build-time version information.
// Injected via WithBuildInfo option to avoid import cycles with cmd package.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SystemInfoResponse is the JSON response for GET /admin/api/system.
type SystemInfoResponse struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	BuildDate       string `json:"build_date"`
	GoVersion       string `json:"go_version"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Uptime          string `json:"uptime"`
	UptimeSec       int64  `json:"uptime_seconds"`
	RateLimit       int    `json:"rate_limit"`
	RateLimitWindow string `json:"rate_limit_window"`
}

// handleSystemInfo returns version, uptime, runtime and admission settings.
func (h *AdminAPIHandler) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)

	resp := SystemInfoResponse{
		Version:   "dev",
		Commit:    "none",
		BuildDate: "unknown",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Uptime:    uptime.Truncate(time.Second).String(),
		UptimeSec: int64(uptime.Seconds()),
	}
	if h.buildInfo != nil {
		resp.Version = h.buildInfo.Version
		resp.Commit = h.buildInfo.Commit
		resp.BuildDate = h.buildInfo.BuildDate
	}
	if h.windowConfig.Limit > 0 {
		resp.RateLimit = h.windowConfig.Limit
		resp.RateLimitWindow = h.windowConfig.Window.String()
	}

	h.respondJSON(w, http.StatusOK, resp)
}
