package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "seqgate"

// Metrics holds all Prometheus metrics for seqgate.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal           *prometheus.CounterVec
	RequestDuration         *prometheus.HistogramVec
	AdmissionsTotal         *prometheus.CounterVec
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	reg prometheus.Registerer
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"route", "status"}, // status=ok/client_error/rate_limited/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"route"},
		),
		AdmissionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "admissions_total",
				Help:      "Rate limiter decisions",
			},
			[]string{"result"}, // result=admitted/refused
		),
		UpstreamRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_requests_total",
				Help:      "Total E-utilities calls by final outcome; a retried call counts once",
			},
			[]string{"endpoint", "outcome"}, // endpoint=esearch/efetch, outcome=ok/error
		),
		UpstreamRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "E-utilities call duration in seconds, retries and backoff included",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		reg: reg,
	}
}

// ObserveUpstream records one upstream call. Its signature matches
// entrez.CallObserver.
func (m *Metrics) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RegisterRateLimitKeys exposes the number of tracked identities, read from
// size at scrape time.
func (m *Metrics) RegisterRateLimitKeys(size func() int) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_keys",
			Help:      "Number of identities with a tracked rate limit window",
		},
		func() float64 { return float64(size()) },
	)
}
