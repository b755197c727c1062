// Package gateway provides the request, result, and error types shared by the
// admission layer, the orchestrator, and the HTTP gateway.
package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies every failure the gateway can report. The set is closed:
// renderers switch over it exhaustively.
type Kind int

const (
	// KindInternal is an unexpected failure inside the gateway.
	KindInternal Kind = iota
	// KindInvalidInput means the caller supplied a malformed parameter.
	KindInvalidInput
	// KindUpstreamFailure means the remote API call or its decoding failed.
	KindUpstreamFailure
	// KindRateLimitExceeded means the caller's window is exhausted.
	KindRateLimitExceeded
)

// String returns the snake_case name used in logs, metrics, and stats.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by the core.
type Error struct {
	Kind Kind
	// Detail is a human-readable description. For InvalidInput and
	// UpstreamFailure it is what the client sees.
	Detail string
	// RetryAfter is set for RateLimitExceeded.
	RetryAfter time.Duration
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, ErrRateLimitExceeded) matches
// any rate-limit refusal regardless of RetryAfter.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching by kind.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrUpstreamFailure   = &Error{Kind: KindUpstreamFailure}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded}
	ErrInternal          = &Error{Kind: KindInternal}
)

// InvalidInput returns a KindInvalidInput error.
func InvalidInput(detail string) *Error {
	return &Error{Kind: KindInvalidInput, Detail: detail}
}

// UpstreamFailure returns a KindUpstreamFailure error wrapping cause.
func UpstreamFailure(detail string, cause error) *Error {
	return &Error{Kind: KindUpstreamFailure, Detail: detail, Err: cause}
}

// RateLimitExceeded returns a KindRateLimitExceeded error.
func RateLimitExceeded(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimitExceeded, RetryAfter: retryAfter}
}

// Internal returns a KindInternal error wrapping cause.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Err: cause}
}

// KindOf classifies err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ClientMessage returns the text rendered to the client for err.
// InvalidInput and UpstreamFailure expose their detail.
func ClientMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindInvalidInput, KindUpstreamFailure:
		if e.Detail == "" {
			return e.Kind.String()
		}
		if e.Kind == KindUpstreamFailure && e.Err != nil {
			return e.Detail + ": " + e.Err.Error()
		}
		return e.Detail
	case KindRateLimitExceeded:
		return "Rate limit exceeded"
	default:
		return "Internal server error"
	}
}
