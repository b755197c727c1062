// Package inbound defines the inbound port interfaces for the gateway core.
// Inbound adapters (HTTP, CLI) call these interfaces.
package inbound

import (
	"context"

	"github.com/seqgate/seqgate/internal/domain/gateway"
)

// Orchestrator executes one gateway operation against the remote API.
type Orchestrator interface {
	// Execute runs op and returns its result or a *gateway.Error.
	// No partial result is ever returned alongside an error.
	Execute(ctx context.Context, op gateway.Operation) (gateway.FetchResult, error)
}
