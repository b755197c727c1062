// Package redisstats provides a Redis-backed stats.Sink.
package redisstats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seqgate/seqgate/internal/domain/stats"
)

// Store increments outcome counters in Redis hashes:
//
//	{prefix}:total                         field = outcome
//	{prefix}:minute:{yyyymmddhhmm}         field = outcome, expires after ttl
//	{prefix}:operation                     field = operation:outcome
type Store struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Surrounding colons are trimmed.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the retention of per-minute buckets. 0 keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// New creates a Store on rdb.
func New(rdb redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: "seqgate:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record increments the counters for ev in one pipeline.
func (s *Store) Record(ctx context.Context, ev stats.Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	outcome := ev.Outcome
	if outcome == "" {
		outcome = stats.OutcomeOK
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), outcome, 1)

	bucket := s.bucketKey(ev.At)
	pipe.HIncrBy(ctx, bucket, outcome, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucket, s.ttl)
	}

	if op := strings.TrimSpace(ev.Operation); op != "" {
		pipe.HIncrBy(ctx, s.operationKey(), op+":"+outcome, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats pipeline: %w", err)
	}
	return nil
}

func (s *Store) totalKey() string { return s.prefix + ":total" }

func (s *Store) operationKey() string { return s.prefix + ":operation" }

func (s *Store) bucketKey(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

var _ stats.Sink = (*Store)(nil)
