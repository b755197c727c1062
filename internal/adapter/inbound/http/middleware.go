package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/seqgate/seqgate/internal/ctxkey"
	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/domain/ratelimit"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// identityContextKey is the type for the client identity context key.
type identityContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// IdentityKey is the context key for the rate-limit identity.
var IdentityKey = identityContextKey{}

// LoggerKey is the context key for the enriched logger.
// Uses shared key type from ctxkey package to allow cross-package access without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// The request ID is stored in context using RequestIDKey.
// An enriched logger with request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// IdentityMiddleware resolves the client identity used for rate limiting and
// stores it in context using IdentityKey.
// Proxy headers are only consulted when trustProxy is set; otherwise any
// client could pick its own bucket.
func IdentityMiddleware(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := extractIdentity(r, trustProxy)
			ctx := context.WithValue(r.Context(), IdentityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by IdentityMiddleware,
// or ratelimit.UnknownIdentity.
func IdentityFromContext(ctx context.Context) ratelimit.ClientIdentity {
	if id, ok := ctx.Value(IdentityKey).(ratelimit.ClientIdentity); ok && id != "" {
		return id
	}
	return ratelimit.UnknownIdentity
}

// extractIdentity derives the client identity from the request.
func extractIdentity(r *http.Request, trustProxy bool) ratelimit.ClientIdentity {
	if trustProxy {
		// Format: X-Forwarded-For: client, proxy1, proxy2
		// Only the first entry identifies the client.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ratelimit.ClientIdentity(canonicalIP(ip))
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return ratelimit.ClientIdentity(canonicalIP(xri))
		}
	}

	if r.RemoteAddr == "" {
		return ratelimit.UnknownIdentity
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port, use RemoteAddr as-is
		host = r.RemoteAddr
	}
	if host == "" {
		return ratelimit.UnknownIdentity
	}
	return ratelimit.ClientIdentity(canonicalIP(host))
}

// canonicalIP normalizes textual IP forms so "::1" and "0:0:0:0:0:0:0:1"
// share a bucket. Non-IP values are returned unchanged.
func canonicalIP(s string) string {
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return s
}

// RecoverMiddleware turns a panicking handler into a 500 response.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			LoggerFromContext(r.Context()).Error("handler panic",
				"panic", rec,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeError(w, gateway.ErrInternal)
		}()
		next.ServeHTTP(w, r)
	})
}
