package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/port/inbound"
	"github.com/seqgate/seqgate/internal/port/outbound"
)

// Orchestrator maps gateway operations onto remote calls and merges their
// results. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	client outbound.RemoteClient
	parser outbound.ResponseParser
	logger *slog.Logger
	tracer trace.Tracer

	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

const instrumentationName = "github.com/seqgate/seqgate/internal/service"

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*orchestratorOptions)

type orchestratorOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OrchestratorOption {
	return func(o *orchestratorOptions) { o.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OrchestratorOption {
	return func(o *orchestratorOptions) { o.meterProvider = mp }
}

// NewOrchestrator creates an Orchestrator. Spans and metrics go to the
// global OpenTelemetry providers unless overridden.
func NewOrchestrator(client outbound.RemoteClient, parser outbound.ResponseParser, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	cfg := orchestratorOptions{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	o := &Orchestrator{
		client: client,
		parser: parser,
		logger: logger,
		tracer: cfg.tracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	var err error
	if o.operations, err = meter.Int64Counter("seqgate.operations",
		metric.WithDescription("Gateway operations by kind and outcome"),
	); err != nil {
		logger.Warn("operation counter unavailable", "error", err)
		o.operations = noop.Int64Counter{}
	}
	if o.duration, err = meter.Float64Histogram("seqgate.operation.duration",
		metric.WithDescription("Gateway operation duration"),
		metric.WithUnit("s"),
	); err != nil {
		logger.Warn("operation histogram unavailable", "error", err)
		o.duration = noop.Float64Histogram{}
	}
	return o
}

// Execute runs op. Every failure is a *gateway.Error.
func (o *Orchestrator) Execute(ctx context.Context, op gateway.Operation) (gateway.FetchResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator."+op.Kind.String(),
		trace.WithAttributes(attribute.String("operation.param", op.Param)),
	)
	defer span.End()

	start := time.Now()
	res, err := o.execute(ctx, op)

	outcome := "ok"
	if err != nil {
		outcome = gateway.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op.Kind.String()),
		attribute.String("outcome", outcome),
	)
	o.operations.Add(ctx, 1, attrs)
	o.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		return gateway.FetchResult{}, err
	}
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, op gateway.Operation) (gateway.FetchResult, error) {
	switch op.Kind {
	case gateway.SearchByOrganism:
		return o.search(ctx, op.Param, outbound.FieldOrganism)
	case gateway.SearchByAuthor:
		return o.search(ctx, op.Param, outbound.FieldAuthor)
	case gateway.FetchDetails:
		return o.fetchDetails(ctx, op.Param)
	default:
		return gateway.FetchResult{}, gateway.Internal(fmt.Errorf("unknown operation kind %d", op.Kind))
	}
}

func (o *Orchestrator) search(ctx context.Context, query string, field outbound.SearchField) (gateway.FetchResult, error) {
	if strings.TrimSpace(query) == "" {
		return gateway.FetchResult{}, gateway.InvalidInput("query must be non-empty")
	}

	body, err := o.client.Search(ctx, query, field)
	if err != nil {
		o.logger.Warn("search failed", "field", field, "query", query, "error", err)
		return gateway.FetchResult{}, gateway.UpstreamFailure("remote API request failed", err)
	}

	ids, err := o.parser.ParseIdentifiers(body)
	if err != nil {
		o.logger.Warn("search response could not be decoded", "field", field, "error", err)
		return gateway.FetchResult{}, gateway.UpstreamFailure("failed to decode search response", err)
	}

	o.logger.Debug("search completed", "field", field, "results", len(ids))
	return gateway.FetchResult{Identifiers: ids}, nil
}

// fetchDetails issues both format fetches concurrently. The first failure
// cancels the sibling and fails the whole operation.
func (o *Orchestrator) fetchDetails(ctx context.Context, id string) (gateway.FetchResult, error) {
	if strings.TrimSpace(id) == "" {
		return gateway.FetchResult{}, gateway.InvalidInput("identifier must be non-empty")
	}

	var genbank, fasta []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := o.client.Fetch(gctx, id, outbound.FormatGenBank)
		if err != nil {
			return &fetchError{format: outbound.FormatGenBank, err: err}
		}
		genbank = b
		return nil
	})
	g.Go(func() error {
		b, err := o.client.Fetch(gctx, id, outbound.FormatFASTA)
		if err != nil {
			return &fetchError{format: outbound.FormatFASTA, err: err}
		}
		fasta = b
		return nil
	})

	if err := g.Wait(); err != nil {
		o.logger.Warn("details fetch failed", "id", id, "error", err)
		return gateway.FetchResult{}, gateway.UpstreamFailure("remote API request failed", err)
	}

	return gateway.FetchResult{Details: &gateway.RecordDetails{
		GenBank: string(genbank),
		FASTA:   string(fasta),
	}}, nil
}

// fetchError names which of the two fetches failed.
type fetchError struct {
	format outbound.RecordFormat
	err    error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s fetch: %v", e.format, e.err)
}

func (e *fetchError) Unwrap() error { return e.err }

var _ inbound.Orchestrator = (*Orchestrator)(nil)
