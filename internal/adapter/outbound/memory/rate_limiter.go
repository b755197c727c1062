// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/seqgate/seqgate/internal/domain/gateway"
	"github.com/seqgate/seqgate/internal/domain/ratelimit"
)

// FixedWindowLimiter implements ratelimit.RateLimiter with a fixed-window
// counter per identity. The identity table is split into shards, each with
// its own lock, so unrelated identities do not contend. A background sweep
// drops windows that expired long ago to keep memory bounded.
type FixedWindowLimiter struct {
	cfg    ratelimit.WindowConfig
	shards []*windowShard
	now    func() time.Time
	logger *slog.Logger

	cleanupInterval time.Duration
	evictionGrace   int

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

type windowShard struct {
	mu      sync.Mutex
	windows map[ratelimit.ClientIdentity]*ratelimit.WindowState
}

// LimiterOption configures a FixedWindowLimiter.
type LimiterOption func(*FixedWindowLimiter)

// WithShards sets the number of lock partitions. Values below 1 mean 1.
func WithShards(n int) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if n < 1 {
			n = 1
		}
		l.shards = newShards(n)
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *FixedWindowLimiter) { l.now = now }
}

// WithCleanup sets the sweep interval and how many whole windows an entry
// may stay expired before it is evicted.
func WithCleanup(interval time.Duration, grace int) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if interval > 0 {
			l.cleanupInterval = interval
		}
		if grace > 0 {
			l.evictionGrace = grace
		}
	}
}

// WithLimiterLogger sets the logger used by the sweep.
func WithLimiterLogger(logger *slog.Logger) LimiterOption {
	return func(l *FixedWindowLimiter) { l.logger = logger }
}

// NewFixedWindowLimiter creates a limiter admitting cfg.Limit requests per
// cfg.Window per identity. Zero fields fall back to ratelimit.DefaultWindowConfig.
func NewFixedWindowLimiter(cfg ratelimit.WindowConfig, opts ...LimiterOption) *FixedWindowLimiter {
	if cfg.Limit <= 0 {
		cfg.Limit = ratelimit.DefaultWindowConfig.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = ratelimit.DefaultWindowConfig.Window
	}
	l := &FixedWindowLimiter{
		cfg:             cfg,
		shards:          newShards(16),
		now:             time.Now,
		logger:          slog.Default(),
		cleanupInterval: 5 * time.Minute,
		evictionGrace:   2,
		stopChan:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newShards(n int) []*windowShard {
	shards := make([]*windowShard, n)
	for i := range shards {
		shards[i] = &windowShard{windows: make(map[ratelimit.ClientIdentity]*ratelimit.WindowState)}
	}
	return shards
}

func (l *FixedWindowLimiter) shardFor(id ratelimit.ClientIdentity) *windowShard {
	if len(l.shards) == 1 {
		return l.shards[0]
	}
	return l.shards[xxhash.Sum64String(string(id))%uint64(len(l.shards))]
}

// Admit checks and records one request from identity.
func (l *FixedWindowLimiter) Admit(_ context.Context, identity ratelimit.ClientIdentity) (ratelimit.Decision, error) {
	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	st, ok := s.windows[identity]
	switch {
	case !ok:
		st = &ratelimit.WindowState{WindowStart: now, Count: 1}
		s.windows[identity] = st
	case st.Expired(now, l.cfg.Window):
		st.WindowStart = now
		st.Count = 1
	case st.Count < l.cfg.Limit:
		st.Count++
	default:
		d := l.decision(false, *st, now)
		return d, gateway.RateLimitExceeded(d.ResetAfter)
	}
	return l.decision(true, *st, now), nil
}

func (l *FixedWindowLimiter) decision(allowed bool, st ratelimit.WindowState, now time.Time) ratelimit.Decision {
	remaining := l.cfg.Limit - st.Count
	if remaining < 0 {
		remaining = 0
	}
	reset := st.WindowStart.Add(l.cfg.Window).Sub(now)
	if reset < 0 {
		reset = 0
	}
	return ratelimit.Decision{
		Allowed:    allowed,
		Count:      st.Count,
		Limit:      l.cfg.Limit,
		Remaining:  remaining,
		ResetAfter: reset,
	}
}

// Config returns the limiter's window configuration.
func (l *FixedWindowLimiter) Config() ratelimit.WindowConfig {
	return l.cfg
}

// State returns a copy of identity's window.
func (l *FixedWindowLimiter) State(identity ratelimit.ClientIdentity) (ratelimit.WindowState, bool) {
	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.windows[identity]
	if !ok {
		return ratelimit.WindowState{}, false
	}
	return *st, true
}

// Reset forgets identity's window.
func (l *FixedWindowLimiter) Reset(identity ratelimit.ClientIdentity) bool {
	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[identity]
	delete(s.windows, identity)
	return ok
}

// Size returns the number of tracked identities.
func (l *FixedWindowLimiter) Size() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// StartCleanup starts the background sweep goroutine.
// It stops when ctx is cancelled or Stop() is called.
func (l *FixedWindowLimiter) StartCleanup(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

// cleanup evicts windows that ended more than evictionGrace windows ago.
// An entry that old would be reset on its next access anyway, so removing it
// never changes a decision.
func (l *FixedWindowLimiter) cleanup() int {
	now := l.now()
	maxAge := l.cfg.Window * time.Duration(l.evictionGrace+1)
	cleaned, remaining := 0, 0

	for _, s := range l.shards {
		s.mu.Lock()
		for id, st := range s.windows {
			if now.Sub(st.WindowStart) > maxAge {
				delete(s.windows, id)
				cleaned++
			}
		}
		remaining += len(s.windows)
		s.mu.Unlock()
	}

	if cleaned > 0 {
		l.logger.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", remaining)
	}
	return cleaned
}

// Stop stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (l *FixedWindowLimiter) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Compile-time interface verification.
var (
	_ ratelimit.RateLimiter = (*FixedWindowLimiter)(nil)
	_ ratelimit.Inspector   = (*FixedWindowLimiter)(nil)
)
