package entrez

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seqgate/seqgate/internal/port/outbound"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(srv *httptest.Server, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBaseURL(srv.URL),
		WithRequestsPerSecond(0),
		WithRetry(2, time.Millisecond),
		WithLogger(discardLogger()),
	}
	return NewClient(append(base, opts...)...)
}

func TestClient_SearchBuildsQuery(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["1"]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, WithCredentials("key123", "seqgate", "ops@example.org"), WithRetMax(50))
	body, err := c.Search(context.Background(), "Homo sapiens", outbound.FieldOrganism)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if string(body) != `{"esearchresult":{"idlist":["1"]}}` {
		t.Errorf("body = %q, want raw response", body)
	}
	if gotPath != "/esearch.fcgi" {
		t.Errorf("path = %q, want %q", gotPath, "/esearch.fcgi")
	}

	want := map[string]string{
		"db":      "nuccore",
		"term":    "Homo sapiens[Organism]",
		"retmode": "json",
		"retmax":  "50",
		"api_key": "key123",
		"tool":    "seqgate",
		"email":   "ops@example.org",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestClient_FetchBuildsQuery(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/efetch.fcgi" {
			t.Errorf("path = %q, want /efetch.fcgi", r.URL.Path)
		}
		q := r.URL.Query()
		mu.Lock()
		seen[q.Get("rettype")] = q.Get("id")
		mu.Unlock()
		if q.Get("retmode") != "text" {
			t.Errorf("retmode = %q, want text", q.Get("retmode"))
		}
		_, _ = w.Write([]byte(">" + q.Get("rettype") + "\n"))
	}))
	defer srv.Close()

	c := newTestClient(srv, WithDatabase("nucleotide"))
	body, err := c.Fetch(context.Background(), "NM_000546", outbound.FormatFASTA)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != ">fasta\n" {
		t.Errorf("body = %q, want %q", body, ">fasta\n")
	}
	if seen["fasta"] != "NM_000546" {
		t.Errorf("fetched id = %q, want NM_000546", seen["fasta"])
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	body, err := c.Fetch(context.Background(), "1", outbound.FormatGenBank)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv, WithRetry(1, time.Millisecond))
	_, err := c.Search(context.Background(), "x", outbound.FieldAuthor)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", se.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (1 + 1 retry)", calls.Load())
	}
}

func TestClient_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad id", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Fetch(context.Background(), "???", outbound.FormatGenBank)
	if err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Body != "bad id" {
		t.Errorf("err = %v, want StatusError with body %q", err, "bad id")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv)
	if _, err := c.Fetch(ctx, "1", outbound.FormatGenBank); err == nil {
		t.Error("Fetch() with cancelled context error = nil, want error")
	}
}

func TestClient_OversizeBodyFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, strings.Repeat("A", maxResponseBodySize+1000))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	body, err := c.Fetch(context.Background(), "NC_000001", outbound.FormatGenBank)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Fetch() error = %v (body %d bytes), want ErrBodyTooLarge", err, len(body))
	}
	if body != nil {
		t.Errorf("body = %d bytes, want nil", len(body))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (oversize is not retried)", calls.Load())
	}
}

func TestClient_BodyAtCapPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("A", maxResponseBodySize))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	body, err := c.Fetch(context.Background(), "NC_000002", outbound.FormatFASTA)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(body) != maxResponseBodySize {
		t.Errorf("len(body) = %d, want %d", len(body), maxResponseBodySize)
	}
}

func TestClient_CancelDuringBackoffReturnsPromptly(t *testing.T) {
	t.Parallel()

	attempted := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case attempted <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// The first backoff wait is at least one second.
	c := newTestClient(srv, WithRetry(3, 2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Search(ctx, "Homo", outbound.FieldOrganism)
		errCh <- err
	}()

	<-attempted
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Search() error = %v, want context.Canceled", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("Search() returned %v after cancel", elapsed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Search() still waiting in backoff after cancel")
	}
}

func TestClient_ObserverSeesOutcome(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/esearch.fcgi" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var events []string
	c := newTestClient(srv, WithCallObserver(func(endpoint, outcome string, _ time.Duration) {
		mu.Lock()
		events = append(events, endpoint+":"+outcome)
		mu.Unlock()
	}))

	_, _ = c.Search(context.Background(), "x", outbound.FieldOrganism)
	_, _ = c.Fetch(context.Background(), "x", outbound.FormatGenBank)

	want := []string{"esearch:ok", "efetch:error"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestClient_ObserverFiresOncePerRetriedCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var observed atomic.Int32
	c := newTestClient(srv, WithCallObserver(func(_, outcome string, _ time.Duration) {
		observed.Add(1)
		if outcome != "ok" {
			t.Errorf("outcome = %q, want ok", outcome)
		}
	}))

	if _, err := c.Search(context.Background(), "x", outbound.FieldAuthor); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if calls.Load() != 3 || observed.Load() != 1 {
		t.Errorf("attempts = %d, observations = %d; want 3 and 1", calls.Load(), observed.Load())
	}
}

func TestStatusError_Temporary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		se := &StatusError{StatusCode: tt.code}
		if got := se.Temporary(); got != tt.want {
			t.Errorf("StatusError{%d}.Temporary() = %v, want %v", tt.code, got, tt.want)
		}
	}
}
