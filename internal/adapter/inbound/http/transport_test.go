package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// markerHandler returns an http.Handler that writes a specific marker string.
// Used in routing tests to verify which handler received the request.
func markerHandler(marker string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", marker)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, marker)
	})
}

// newTestTransport creates an HTTPTransport with marker handlers for the
// gateway and admin routes.
func newTestTransport(t *testing.T) *HTTPTransport {
	t.Helper()
	return NewHTTPTransport(markerHandler("gateway"),
		WithAddr("127.0.0.1:0"),
		WithLogger(discardLogger()),
		WithExtraHandler(markerHandler("admin")),
	)
}

func TestRouting_TableDriven(t *testing.T) {
	server := httptest.NewServer(newTestTransport(t).Handler())
	defer server.Close()

	tests := []struct {
		path       string
		wantMarker string
	}{
		{"/search/genus/Homo", "gateway"},
		{"/details/1", "gateway"},
		{"/", "gateway"},
		{"/admin/api/stats", "admin"},
		{"/admin/api/ratelimit/10.0.0.1", "admin"},
	}

	for _, tt := range tests {
		resp, err := http.Get(server.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		_ = resp.Body.Close()
		if got := resp.Header.Get("X-Handler"); got != tt.wantMarker {
			t.Errorf("GET %s handled by %q, want %q", tt.path, got, tt.wantMarker)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s: missing X-Request-ID", tt.path)
		}
	}
}

func TestRouting_HealthAndMetrics(t *testing.T) {
	server := httptest.NewServer(newTestTransport(t).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Handler") != "" {
		t.Errorf("/health: status %d handler %q, want 200 from health checker", resp.StatusCode, resp.Header.Get("X-Handler"))
	}

	// Generate one gateway request so request metrics exist.
	resp, err = http.Get(server.URL + "/details/1")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	for _, want := range []string{"go_goroutines", `seqgate_requests_total{route="/details/{id}",status="ok"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestRouting_NoAdminHandler(t *testing.T) {
	transport := NewHTTPTransport(markerHandler("gateway"), WithLogger(discardLogger()))
	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/admin/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.Header.Get("X-Handler") != "gateway" {
		t.Errorf("/admin/api/stats without admin handler routed to %q, want gateway", resp.Header.Get("X-Handler"))
	}
}

func TestWithTimeouts_ZeroKeepsDefaults(t *testing.T) {
	transport := NewHTTPTransport(nil, WithTimeouts(0, 3*time.Second))
	if transport.readHeaderTimeout != 10*time.Second {
		t.Errorf("readHeaderTimeout = %v, want 10s", transport.readHeaderTimeout)
	}
	if transport.shutdownTimeout != 3*time.Second {
		t.Errorf("shutdownTimeout = %v, want 3s", transport.shutdownTimeout)
	}
}

func TestTransport_StartAndShutdown(t *testing.T) {
	transport := newTestTransport(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start(ctx)
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5 seconds after cancel")
	}
}

func TestTransport_StartFailsOnBadAddr(t *testing.T) {
	transport := NewHTTPTransport(markerHandler("gateway"),
		WithAddr("256.0.0.1:bad"),
		WithLogger(discardLogger()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start(context.Background())
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Start() with invalid address returned nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not fail within 5 seconds")
	}
}
