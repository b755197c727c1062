package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := MetricsMiddleware(metrics)(statusHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/search/genus/Homo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "seqgate_request_duration_seconds" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "route" && lp.GetValue() == RouteSearchGenus {
						if m.GetHistogram().GetSampleCount() != 1 {
							t.Errorf("expected 1 observation, got %d", m.GetHistogram().GetSampleCount())
						}
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("expected to find request_duration_seconds metric with the genus route label")
	}
}

func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		path   string
		code   int
		route  string
		status string
	}{
		{"/details/NM_000546", http.StatusOK, RouteDetails, "ok"},
		{"/search/author/Smith", http.StatusBadRequest, RouteSearchAuthor, "client_error"},
		{"/search/genus/Homo", http.StatusTooManyRequests, RouteSearchGenus, "rate_limited"},
		{"/details/1", http.StatusInternalServerError, RouteDetails, "error"},
		{"/admin/api/stats", http.StatusForbidden, "/admin/api", "client_error"},
		{"/nope", http.StatusNotFound, "other", "client_error"},
	}

	for _, tt := range tests {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		handler := MetricsMiddleware(metrics)(statusHandler(tt.code))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

		var m dto.Metric
		if err := metrics.RequestsTotal.WithLabelValues(tt.route, tt.status).Write(&m); err != nil {
			t.Fatal(err)
		}
		if m.Counter.GetValue() != 1 {
			t.Errorf("%s %d: requests_total{%s,%s} = %f, want 1", tt.path, tt.code, tt.route, tt.status, m.Counter.GetValue())
		}
	}
}

func TestMetricsMiddleware_SkipsMetricsAndHealth(t *testing.T) {
	for _, path := range []string{"/metrics", "/health"} {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)

		handler := MetricsMiddleware(metrics)(statusHandler(http.StatusOK))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

		metricFamilies, err := reg.Gather()
		if err != nil {
			t.Fatal(err)
		}
		for _, mf := range metricFamilies {
			if mf.GetName() == "seqgate_request_duration_seconds" || mf.GetName() == "seqgate_requests_total" {
				t.Errorf("%s: expected no request metrics, found %s", path, mf.GetName())
			}
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/search/genus/Homo%20sapiens": RouteSearchGenus,
		"/search/author/Smith":         RouteSearchAuthor,
		"/details/NM_000546.6":         RouteDetails,
		"/admin/api/config":            "/admin/api",
		"/":                            "other",
		"/search/genus":                "other",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
