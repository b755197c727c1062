package ratelimit

import "context"

// RateLimiter decides whether a request from an identity may proceed.
//
// Admit performs the check and the increment as one atomic step per
// identity. A refused request returns a *gateway.Error of kind
// RateLimitExceeded alongside a Decision with Allowed=false, and does not
// change the stored count.
type RateLimiter interface {
	Admit(ctx context.Context, identity ClientIdentity) (Decision, error)
}

// Inspector exposes limiter state for the admin API and metrics.
type Inspector interface {
	// State returns a copy of the identity's window, if tracked.
	State(identity ClientIdentity) (WindowState, bool)
	// Reset forgets the identity's window. Reports whether it existed.
	Reset(identity ClientIdentity) bool
	// Size returns the number of tracked identities.
	Size() int
}
