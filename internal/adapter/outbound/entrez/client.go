// Package entrez provides the NCBI E-utilities adapters: an HTTP client
// implementing outbound.RemoteClient, a response parser, and an optional
// caching decorator.
package entrez

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/seqgate/seqgate/internal/port/outbound"
)

const (
	// maxResponseBodySize caps a single response. GenBank records for whole
	// chromosomes exceed this; such ids fail with ErrBodyTooLarge rather than
	// exhaust memory or pass through truncated.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	// maxErrorBodySize is how much of a non-2xx body is kept in StatusError.
	maxErrorBodySize = 512

	esearchEndpoint = "esearch.fcgi"
	efetchEndpoint  = "efetch.fcgi"
)

// DefaultBaseURL is the public E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// ErrBodyTooLarge is returned when a successful response exceeds the size cap.
// It is never retried.
var ErrBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxResponseBodySize)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CallObserver is notified once per completed remote call, after retries.
// outcome is "ok" or "error".
type CallObserver func(endpoint, outcome string, elapsed time.Duration)

// Client calls esearch and efetch. Safe for concurrent use.
type Client struct {
	baseURL    string
	database   string
	apiKey     string
	tool       string
	email      string
	retMax     int
	httpClient *http.Client
	throttle   *rate.Limiter
	logger     *slog.Logger
	tracer     trace.Tracer
	observer   CallObserver

	maxRetries      int
	retryInitial    time.Duration
	retryMaxElapsed time.Duration
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithBaseURL overrides the E-utilities root (tests point this at httptest).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithDatabase sets the Entrez database. Default "nuccore".
func WithDatabase(db string) ClientOption {
	return func(c *Client) {
		if db != "" {
			c.database = db
		}
	}
}

// WithCredentials sets the optional api_key, tool, and email parameters.
func WithCredentials(apiKey, tool, email string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
		c.tool = tool
		c.email = email
	}
}

// WithRetMax caps search results. 0 leaves the server default.
func WithRetMax(n int) ClientOption {
	return func(c *Client) { c.retMax = n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient != nil && d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRequestsPerSecond throttles outbound requests. <= 0 disables throttling.
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.throttle = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.throttle = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry sets the number of extra attempts for transient failures and
// the first backoff delay.
func WithRetry(maxRetries int, initial time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if initial > 0 {
			c.retryInitial = initial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithCallObserver registers a per-call observer (metrics).
func WithCallObserver(fn CallObserver) ClientOption {
	return func(c *Client) { c.observer = fn }
}

// NewClient creates an E-utilities client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		database: "nuccore",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		throttle:        rate.NewLimiter(rate.Limit(3), 1),
		logger:          slog.Default(),
		tracer:          otel.Tracer("github.com/seqgate/seqgate/internal/adapter/outbound/entrez"),
		maxRetries:      2,
		retryInitial:    500 * time.Millisecond,
		retryMaxElapsed: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Search runs esearch with term "{query}[{field}]" and returns the JSON body.
func (c *Client) Search(ctx context.Context, query string, field outbound.SearchField) ([]byte, error) {
	params := c.baseParams()
	params.Set("term", query+"["+string(field)+"]")
	params.Set("retmode", "json")
	if c.retMax > 0 {
		params.Set("retmax", fmt.Sprintf("%d", c.retMax))
	}
	return c.get(ctx, esearchEndpoint, params)
}

// Fetch runs efetch for one id and returns the record body verbatim.
func (c *Client) Fetch(ctx context.Context, id string, format outbound.RecordFormat) ([]byte, error) {
	params := c.baseParams()
	params.Set("id", id)
	params.Set("rettype", string(format))
	params.Set("retmode", "text")
	return c.get(ctx, efetchEndpoint, params)
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("db", c.database)
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	return params
}

// get performs a throttled GET with retries on transient failures.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "entrez."+strings.TrimSuffix(endpoint, ".fcgi"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("entrez.db", c.database)),
	)
	defer span.End()

	target := c.baseURL + "/" + endpoint + "?" + params.Encode()
	start := time.Now()

	var (
		body      []byte
		permanent error
		attempts  int
	)
	op := func() error {
		attempts++
		if err := c.throttle.Wait(ctx); err != nil {
			permanent = err
			return nil
		}
		b, err := c.do(ctx, target)
		if err == nil {
			body = b
			return nil
		}
		if attempts > c.maxRetries || !isRetryable(err) || ctx.Err() != nil {
			permanent = err
			return nil
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInitial
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = c.retryMaxElapsed
	// Cancelling ctx ends a pending backoff wait immediately.
	b := backoff.WithContext(eb, ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Warn("entrez request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	})
	if err == nil {
		err = permanent
	}
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w (last error: %v)", ctxErr, err)
	}

	span.SetAttributes(attribute.Int("entrez.attempts", attempts))
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.observer != nil {
		c.observer(strings.TrimSuffix(endpoint, ".fcgi"), outcome, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(endpoint, ".fcgi"), err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// One byte past the cap tells an oversize body from one exactly at it.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBodySize {
			msg = msg[:maxErrorBodySize]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	if len(body) > maxResponseBodySize {
		return nil, ErrBodyTooLarge
	}

	return body, nil
}

// isRetryable reports whether err is worth another attempt: transport
// failures, 429, and 5xx. Cancellation and oversize bodies never are.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// Compile-time interface verification.
var _ outbound.RemoteClient = (*Client)(nil)
