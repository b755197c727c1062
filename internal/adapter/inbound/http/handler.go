package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/domain/ratelimit"
	"github.com/seqgate/seqgate/internal/port/inbound"
)

// Gateway routes.
const (
	RouteSearchGenus  = "/search/genus/{query}"
	RouteSearchAuthor = "/search/author/{query}"
	RouteDetails      = "/details/{id}"
)

// Rate-limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// OutcomeRecorder receives one outcome per gateway request.
type OutcomeRecorder interface {
	RecordSuccess(ctx context.Context, op gateway.OperationKind, identity string)
	RecordFailure(ctx context.Context, op gateway.OperationKind, identity string, err error)
}

// GatewayHandler serves the public gateway routes. Every request is admitted
// by the rate limiter before the orchestrator sees it.
type GatewayHandler struct {
	limiter      ratelimit.RateLimiter
	orchestrator inbound.Orchestrator
	recorder     OutcomeRecorder
	metrics      *Metrics
	logger       *slog.Logger
}

// GatewayOption configures a GatewayHandler.
type GatewayOption func(*GatewayHandler)

// WithOutcomeRecorder sets where request outcomes are recorded.
func WithOutcomeRecorder(r OutcomeRecorder) GatewayOption {
	return func(h *GatewayHandler) {
		h.recorder = r
	}
}

// WithGatewayMetrics sets the metrics admission decisions are counted in.
func WithGatewayMetrics(m *Metrics) GatewayOption {
	return func(h *GatewayHandler) {
		h.metrics = m
	}
}

// WithGatewayLogger sets the fallback logger used when the request context
// carries none.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(h *GatewayHandler) {
		h.logger = logger
	}
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(limiter ratelimit.RateLimiter, orchestrator inbound.Orchestrator, opts ...GatewayOption) *GatewayHandler {
	h := &GatewayHandler{
		limiter:      limiter,
		orchestrator: orchestrator,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the gateway route table.
func (h *GatewayHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get(RouteSearchGenus, h.serve(gateway.SearchByOrganism, "query"))
	r.Get(RouteSearchAuthor, h.serve(gateway.SearchByAuthor, "query"))
	r.Get(RouteDetails, h.serve(gateway.FetchDetails, "id"))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writePlain(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writePlain(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (h *GatewayHandler) serve(kind gateway.OperationKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := h.requestLogger(r)
		identity := IdentityFromContext(ctx)

		decision, err := h.limiter.Admit(ctx, identity)
		if err != nil {
			if gateway.KindOf(err) == gateway.KindRateLimitExceeded {
				h.countAdmission("refused")
				setRateLimitHeaders(w, decision)
				logger.Warn("rate limit exceeded",
					"identity", identity,
					"operation", kind.String(),
					"retry_after", decision.ResetAfter,
				)
			} else {
				logger.Error("admission check failed", "identity", identity, "error", err)
			}
			h.fail(w, r, kind, identity, err)
			return
		}
		h.countAdmission("admitted")
		setRateLimitHeaders(w, decision)

		op := gateway.Operation{Kind: kind, Param: pathParam(r, param)}
		res, err := h.orchestrator.Execute(ctx, op)
		if err != nil {
			switch gateway.KindOf(err) {
			case gateway.KindInternal:
				logger.Error("operation failed", "operation", kind.String(), "error", err)
			case gateway.KindUpstreamFailure:
				if errors.Is(err, context.Canceled) {
					logger.Debug("client went away", "operation", kind.String())
				} else {
					logger.Warn("upstream failure", "operation", kind.String(), "error", err)
				}
			}
			h.fail(w, r, kind, identity, err)
			return
		}

		body, err := encodeResult(kind, res)
		if err != nil {
			err = gateway.Internal(err)
			logger.Error("response encoding failed", "operation", kind.String(), "error", err)
			h.fail(w, r, kind, identity, err)
			return
		}

		if h.recorder != nil {
			h.recorder.RecordSuccess(ctx, kind, string(identity))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (h *GatewayHandler) fail(w http.ResponseWriter, r *http.Request, kind gateway.OperationKind, identity ratelimit.ClientIdentity, err error) {
	if h.recorder != nil {
		h.recorder.RecordFailure(r.Context(), kind, string(identity), err)
	}
	writeError(w, err)
}

func (h *GatewayHandler) countAdmission(result string) {
	if h.metrics != nil {
		h.metrics.AdmissionsTotal.WithLabelValues(result).Inc()
	}
}

func (h *GatewayHandler) requestLogger(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return h.logger
}

// pathParam returns the decoded route parameter. chi matches on RawPath when
// the request path carries escapes that Path cannot represent.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

// encodeResult renders a search as a JSON array of identifiers and a details
// fetch as {"genbank": ..., "fasta": ...}.
func encodeResult(kind gateway.OperationKind, res gateway.FetchResult) ([]byte, error) {
	if kind == gateway.FetchDetails {
		details := res.Details
		if details == nil {
			details = &gateway.RecordDetails{}
		}
		return json.Marshal(details)
	}
	ids := res.Identifiers
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(ceilSeconds(d.ResetAfter)))
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.KindInvalidInput, gateway.KindUpstreamFailure:
		return http.StatusBadRequest
	case gateway.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case gateway.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a plain-text response. Bodies are written
// without a trailing newline.
func writeError(w http.ResponseWriter, err error) {
	kind := gateway.KindOf(err)
	if kind == gateway.KindRateLimitExceeded {
		var ge *gateway.Error
		retryAfter := 1
		if errors.As(err, &ge) {
			if s := ceilSeconds(ge.RetryAfter); s > 0 {
				retryAfter = s
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writePlain(w, statusFor(kind), gateway.ClientMessage(err))
}

func writePlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
