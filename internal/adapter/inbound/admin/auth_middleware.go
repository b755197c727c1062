package admin

import (
	"net"
	"net/http"
	"strings"

	"github.com/seqgate/seqgate/internal/domain/auth"
)

// isLocalhost checks if the request originates from a loopback address.
// It parses the host portion from r.RemoteAddr. X-Forwarded-For is
// intentionally NOT trusted (an attacker could spoof it).
func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// bearerToken returns the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// adminAuthMiddleware wraps an http.Handler and enforces access control.
// Localhost requests bypass auth entirely. Remote requests must present a
// bearer key matching the configured hash; everything else gets 403.
func (h *AdminAPIHandler) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLocalhost(r) {
			next.ServeHTTP(w, r)
			return
		}

		if h.apiKeyHash == "" {
			h.respondError(w, http.StatusForbidden, "admin API requires localhost access")
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			h.respondError(w, http.StatusForbidden, "admin API key required")
			return
		}
		match, err := auth.VerifyKey(token, h.apiKeyHash)
		if err != nil {
			h.logger.Error("admin API key verification failed", "error", err)
		}
		if !match {
			h.logger.Warn("admin API request with invalid key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			h.respondError(w, http.StatusForbidden, "invalid admin API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
