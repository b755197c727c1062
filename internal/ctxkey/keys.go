// Package ctxkey defines context key types shared across packages.
// It must not import other internal packages.
package ctxkey

// LoggerKey is the context key type for the request-scoped logger.
// HTTP middleware stores a logger carrying request_id under it.
type LoggerKey struct{}
