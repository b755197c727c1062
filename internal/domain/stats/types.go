// Package stats provides request outcome events and the sink port that
// records them outside the process.
package stats

import (
	"context"
	"time"
)

// OutcomeOK marks a successful operation.
const OutcomeOK = "ok"

// Event is one finished gateway request.
type Event struct {
	// Operation is the operation kind name (e.g. "search_organism").
	Operation string
	// Outcome is OutcomeOK or a gateway error kind name.
	Outcome string
	// Identity is the client identity. Sinks must not index on it by
	// default: cardinality is unbounded.
	Identity string
	At       time.Time
}

// Sink persists events. Callers treat errors as best-effort and never fail
// a request because of one.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}
