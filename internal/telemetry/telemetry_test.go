package telemetry

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

// syncBuffer is a bytes.Buffer safe for the exporters' background writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetup_ExportsSpansAndMetrics(t *testing.T) {
	out := &syncBuffer{}
	shutdown, err := Setup(context.Background(), Options{
		Enabled:        true,
		ServiceVersion: "test",
		Writer:         out,
		MetricInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ctx := context.Background()
	_, span := otel.Tracer("telemetry-test").Start(ctx, "unit-of-work")
	span.End()

	counter, err := otel.Meter("telemetry-test").Int64Counter("test.counter")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(ctx, 3)

	// Shutdown flushes the batcher and the periodic reader.
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"unit-of-work", "test.counter", "seqgate"} {
		if !strings.Contains(got, want) {
			t.Errorf("export output missing %q", want)
		}
	}
}
