package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"muster-gateway/internal/api"
)

// DefaultCallTimeout bounds a single tools/call dispatch to an upstream.
const DefaultCallTimeout = 30 * time.Second

// dispatchFunc sends one JSON-RPC request to a specific upstream and
// returns its raw reply, unifying the stdio (internal/process) and HTTP
// (internal/httpupstream) transports behind one signature.
type dispatchFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// serviceEntry is one row of the aggregator's services map.
type serviceEntry struct {
	definition api.ServiceDefinition
	caps       *api.ServiceCapabilities
	lastErr    string
	dispatch   dispatchFunc
}

// WarmupOutcome reports one service's warm-up result.
type WarmupOutcome struct {
	ServiceID string
	ToolCount int
	Err       error
}

