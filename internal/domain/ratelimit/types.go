// Package ratelimit provides admission-control domain types.
package ratelimit

import (
	"time"
)

// ClientIdentity is the opaque per-client key the limiter partitions on.
// In practice it is the normalized peer IP.
type ClientIdentity string

// UnknownIdentity is used when the peer address cannot be determined.
// All such requests share one window.
const UnknownIdentity ClientIdentity = "unknown"

// WindowConfig fixes the admission ceiling. It is set once at construction.
type WindowConfig struct {
	// Limit is the number of requests admitted per window.
	Limit int
	// Window is the window length.
	Window time.Duration
}

// DefaultWindowConfig admits 10 requests per 60 seconds.
var DefaultWindowConfig = WindowConfig{Limit: 10, Window: 60 * time.Second}

// WindowState is the per-identity counter.
type WindowState struct {
	// WindowStart is when the current window opened.
	WindowStart time.Time
	// Count is the number of requests admitted in the current window.
	Count int
}

// Expired reports whether the window has strictly elapsed at now.
func (s WindowState) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.WindowStart) > window
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// Count is the window's count after this check.
	Count int
	// Limit is the configured ceiling.
	Limit int
	// Remaining is Limit-Count, never negative.
	Remaining int
	// ResetAfter is the time until the current window ends.
	ResetAfter time.Duration
}
