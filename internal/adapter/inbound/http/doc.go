// Package http provides the HTTP transport for seqgate.
//
// # Usage
//
//	gw := http.NewGatewayHandler(limiter, orchestrator,
//	    http.WithOutcomeRecorder(statsService),
//	    http.WithGatewayMetrics(metrics),
//	)
//	transport := http.NewHTTPTransport(gw.Routes(),
//	    http.WithAddr(":8080"),
//	    http.WithMetrics(reg, metrics),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	GET /search/genus/{query}   - ids of records whose organism matches query
//	GET /search/author/{query}  - ids of records whose author matches query
//	GET /details/{id}           - {"genbank": "...", "fasta": "..."} for one record
//	GET /health                 - JSON health report
//	GET /metrics                - Prometheus metrics
//	/admin/api/...              - admin API, when mounted with WithExtraHandler
//
// # Rate Limiting
//
// Every gateway request is admitted by a fixed-window limiter keyed on the
// client identity before any upstream call is made. Admitted responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset. Refused
// requests get 429 with a Retry-After header and the body
// "Rate limit exceeded".
//
// The identity is the peer address from RemoteAddr. Behind a reverse proxy,
// WithTrustProxyHeaders switches it to the first X-Forwarded-For entry, then
// X-Real-IP.
//
// # Errors
//
// Invalid input and upstream failures render as 400 with the error detail
// as a plain-text body. Anything else, including recovered panics, renders
// as 500 "Internal server error".
//
// # Middleware Chain
//
//  1. MetricsMiddleware - request count and duration by route
//  2. RequestIDMiddleware - X-Request-ID and request-scoped logger
//  3. RecoverMiddleware - panics become 500
//  4. IdentityMiddleware - rate limit identity
package http
