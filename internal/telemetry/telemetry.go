// Package telemetry configures OpenTelemetry trace and metric export.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops exporters.
type ShutdownFunc func(context.Context) error

// Options configures Setup.
type Options struct {
	// Enabled turns export on. When false Setup installs nothing and the
	// global no-op providers stay in place.
	Enabled bool
	// ServiceVersion is attached to every span and metric.
	ServiceVersion string
	// Writer receives exported data. Defaults to os.Stderr.
	Writer io.Writer
	// PrettyPrint indents exported JSON.
	PrettyPrint bool
	// MetricInterval is how often metrics are exported. Defaults to 60s.
	MetricInterval time.Duration
}

// Setup installs global tracer and meter providers exporting to
// opts.Writer. The returned ShutdownFunc is never nil.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = 60 * time.Second
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "seqgate"),
		attribute.String("service.version", opts.ServiceVersion),
	)

	traceOpts := []stdouttrace.Option{stdouttrace.WithWriter(opts.Writer)}
	metricOpts := []stdoutmetric.Option{stdoutmetric.WithWriter(opts.Writer)}
	if opts.PrettyPrint {
		traceOpts = append(traceOpts, stdouttrace.WithPrettyPrint())
		metricOpts = append(metricOpts, stdoutmetric.WithPrettyPrint())
	}

	traceExp, err := stdouttrace.New(traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New(metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(opts.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
