package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPTransport is the inbound adapter that serves the gateway over HTTP.
type HTTPTransport struct {
	gateway           http.Handler
	server            *http.Server
	addr              string
	trustProxy        bool
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	extraHandler      http.Handler   // Optional admin API handler
	registry          *prometheus.Registry
	metrics           *Metrics       // Prometheus metrics
	healthChecker     *HealthChecker // Health check handler
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithTrustProxyHeaders makes X-Forwarded-For and X-Real-IP authoritative
// for the client identity. Enable only behind a proxy that sets them.
func WithTrustProxyHeaders(trust bool) Option {
	return func(t *HTTPTransport) {
		t.trustProxy = trust
	}
}

// WithTimeouts sets the read-header and graceful-shutdown timeouts.
// Zero values keep the defaults.
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(t *HTTPTransport) {
		if readHeader > 0 {
			t.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			t.shutdownTimeout = shutdown
		}
	}
}

// WithExtraHandler mounts h under /admin/api/.
func WithExtraHandler(h http.Handler) Option {
	return func(t *HTTPTransport) {
		t.extraHandler = h
	}
}

// WithMetrics serves reg on /metrics and records request metrics into m.
// Without it the transport builds its own registry on first use.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(t *HTTPTransport) {
		t.registry = reg
		t.metrics = m
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// NewHTTPTransport creates an HTTP transport serving gateway as the catch-all
// route.
func NewHTTPTransport(gateway http.Handler, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		gateway:           gateway,
		addr:              "127.0.0.1:8080",
		readHeaderTimeout: 10 * time.Second,
		shutdownTimeout:   10 * time.Second,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewRegistry returns a Prometheus registry carrying the Go runtime and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler builds the full routing tree with its middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	if t.registry == nil {
		t.registry = NewRegistry()
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(t.registry)
	}

	mux := http.NewServeMux()
	if t.extraHandler != nil {
		mux.Handle("/admin/api/", t.extraHandler)
	}
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		// Fallback to simple handler if no checker configured
		mux.Handle("/health", NewHealthChecker(nil, nil, "").Handler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))
	// Favicon handler to keep browsers from consuming rate limit budget
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/", t.gateway)

	// Middleware order (outermost first):
	// 1. MetricsMiddleware - Record duration and status (MUST be outermost to capture full duration)
	// 2. RequestID - Extract/generate request ID and enrich logger
	// 3. Recover - Render panics as 500 with the request logger available
	// 4. Identity - Resolve the rate limit identity
	var handler http.Handler = mux
	handler = IdentityMiddleware(t.trustProxy)(handler)
	handler = RecoverMiddleware(handler)
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: t.readHeaderTimeout,
	}

	// Channel for server errors
	errCh := make(chan error, 1)

	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
