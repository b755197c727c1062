// Package service contains application services.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/domain/stats"
)

const (
	// sinkQueueSize bounds the events waiting for the sink worker. Events
	// arriving while the queue is full are dropped.
	sinkQueueSize = 1024

	// sinkTimeout bounds one Sink.Record call.
	sinkTimeout = 2 * time.Second
)

// StatsService tracks request outcomes using lock-free atomic counters and
// forwards each event to the configured sinks from a background worker, so
// a slow sink never delays the request that produced the event.
// All operations are safe for concurrent access from multiple goroutines.
type StatsService struct {
	admitted         atomic.Int64
	rateLimited      atomic.Int64
	succeeded        atomic.Int64
	invalidInput     atomic.Int64
	upstreamFailures atomic.Int64
	internalErrors   atomic.Int64

	// operationCounts is keyed "operation:outcome".
	operationCounts cmap.ConcurrentMap[string, int64]

	sinks       []stats.Sink
	queue       chan queuedEvent
	sinkDropped atomic.Int64
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	logger *slog.Logger
	start  time.Time
}

type queuedEvent struct {
	ctx context.Context
	ev  stats.Event
}

// NewStatsService creates a StatsService. Sinks may be empty. With sinks,
// a worker goroutine is started; Close stops it.
func NewStatsService(logger *slog.Logger, sinks ...stats.Sink) *StatsService {
	s := &StatsService{
		operationCounts: cmap.New[int64](),
		sinks:           sinks,
		stopCh:          make(chan struct{}),
		logger:          logger,
		start:           time.Now(),
	}
	if len(sinks) > 0 {
		s.queue = make(chan queuedEvent, sinkQueueSize)
		s.wg.Add(1)
		go s.runSinks()
	}
	return s
}

// Close delivers the queued events and stops the sink worker. Delivery
// after Close is bounded by the sink timeout; anything left is dropped.
// Events recorded after Close are counted locally but never reach the sinks.
// Safe to call multiple times.
func (s *StatsService) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *StatsService) runSinks() {
	defer s.wg.Done()
	for {
		select {
		case q := <-s.queue:
			s.deliver(q)
		case <-s.stopCh:
			// Drain for at most one sinkTimeout; the rest is dropped.
			deadline := time.Now().Add(sinkTimeout)
			for {
				select {
				case q := <-s.queue:
					if time.Now().After(deadline) {
						s.sinkDropped.Add(1)
						continue
					}
					s.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (s *StatsService) deliver(q queuedEvent) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(q.ctx, sinkTimeout)
		if err := sink.Record(ctx, q.ev); err != nil {
			s.logger.Debug("stats sink record failed", "error", err)
		}
		cancel()
	}
}

// RecordSuccess records a completed operation.
func (s *StatsService) RecordSuccess(ctx context.Context, op gateway.OperationKind, identity string) {
	s.admitted.Add(1)
	s.succeeded.Add(1)
	s.record(ctx, op, stats.OutcomeOK, identity)
}

// RecordFailure records a failed or refused operation by error kind.
func (s *StatsService) RecordFailure(ctx context.Context, op gateway.OperationKind, identity string, err error) {
	kind := gateway.KindOf(err)
	switch kind {
	case gateway.KindRateLimitExceeded:
		s.rateLimited.Add(1)
	case gateway.KindInvalidInput:
		s.admitted.Add(1)
		s.invalidInput.Add(1)
	case gateway.KindUpstreamFailure:
		s.admitted.Add(1)
		s.upstreamFailures.Add(1)
	default:
		s.admitted.Add(1)
		s.internalErrors.Add(1)
	}
	s.record(ctx, op, kind.String(), identity)
}

func (s *StatsService) record(ctx context.Context, op gateway.OperationKind, outcome, identity string) {
	s.operationCounts.Upsert(op.String()+":"+outcome, 1, func(exist bool, inMap, newValue int64) int64 {
		if exist {
			return inMap + newValue
		}
		return newValue
	})

	if s.queue == nil {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}

	// The request context ends with the response; keep its values only.
	q := queuedEvent{
		ctx: context.WithoutCancel(ctx),
		ev:  stats.Event{Operation: op.String(), Outcome: outcome, Identity: identity, At: time.Now()},
	}
	select {
	case s.queue <- q:
	default:
		s.sinkDropped.Add(1)
		s.logger.Debug("stats sink queue full, event dropped", "operation", q.ev.Operation)
	}
}

// OperationStats is the outcome breakdown for one operation kind.
type OperationStats map[string]int64

// Stats holds a snapshot of all counters at a point in time.
type Stats struct {
	Admitted         int64                     `json:"admitted"`
	RateLimited      int64                     `json:"rate_limited"`
	Succeeded        int64                     `json:"succeeded"`
	InvalidInput     int64                     `json:"invalid_input"`
	UpstreamFailures int64                     `json:"upstream_failures"`
	InternalErrors   int64                     `json:"internal_errors"`
	Operations       map[string]OperationStats `json:"operations"`
	SinkDropped      int64                     `json:"sink_dropped"`
	UptimeSeconds    int64                     `json:"uptime_seconds"`
}

// GetStats returns a snapshot of all counters.
// The snapshot is consistent per-counter but not atomically across all counters.
func (s *StatsService) GetStats() Stats {
	ops := make(map[string]OperationStats)
	s.operationCounts.IterCb(func(key string, v int64) {
		op, outcome, _ := strings.Cut(key, ":")
		if ops[op] == nil {
			ops[op] = OperationStats{}
		}
		ops[op][outcome] = v
	})

	return Stats{
		Admitted:         s.admitted.Load(),
		RateLimited:      s.rateLimited.Load(),
		Succeeded:        s.succeeded.Load(),
		InvalidInput:     s.invalidInput.Load(),
		UpstreamFailures: s.upstreamFailures.Load(),
		InternalErrors:   s.internalErrors.Load(),
		Operations:       ops,
		SinkDropped:      s.sinkDropped.Load(),
		UptimeSeconds:    int64(time.Since(s.start).Seconds()),
	}
}

// Reset sets all counters to zero.
func (s *StatsService) Reset() {
	s.admitted.Store(0)
	s.rateLimited.Store(0)
	s.succeeded.Store(0)
	s.invalidInput.Store(0)
	s.upstreamFailures.Store(0)
	s.internalErrors.Store(0)
	s.sinkDropped.Store(0)
	s.operationCounts.Clear()
}
