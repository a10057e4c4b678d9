package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"muster-gateway/internal/api"
	"muster-gateway/internal/process"
)

// stdioDispatcher demultiplexes one stdio child's response stream by
// JSON-RPC id so concurrent tools/call invocations against the same
// service don't observe each other's replies. It mirrors
// internal/channel.Registry's lock-protected pending-map idiom, applied
// here to stdio request/response correlation instead of server-to-client
// roots requests.
type stdioDispatcher struct {
	mgr       *process.Manager
	serviceID string

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
}

func newStdioDispatcher(mgr *process.Manager, serviceID string) (*stdioDispatcher, error) {
	sub, err := mgr.SubscribeResponses(serviceID)
	if err != nil {
		return nil, err
	}
	d := &stdioDispatcher{
		mgr:       mgr,
		serviceID: serviceID,
		pending:   make(map[string]chan json.RawMessage),
	}
	go d.demux(sub)
	return d, nil
}

func (d *stdioDispatcher) demux(sub <-chan json.RawMessage) {
	for msg := range sub {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(msg, &probe); err != nil {
			continue
		}
		key := string(probe.ID)

		d.mu.Lock()
		ch, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.mu.Unlock()

		if ok {
			ch <- msg
		}
	}

	// child exited: fail every still-pending request.
	d.mu.Lock()
	for id, ch := range d.pending {
		close(ch)
		delete(d.pending, id)
	}
	d.mu.Unlock()
}

// dispatch adapts call to the package's dispatchFunc signature, using the
// aggregator's default call timeout.
func (d *stdioDispatcher) dispatch(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return d.call(ctx, payload, DefaultCallTimeout)
}

// notify writes a one-way JSON-RPC notification (no "id", no reply) to the
// child's stdin, bypassing call's pending-response correlation since
// nothing will ever arrive to fulfill it.
func (d *stdioDispatcher) notify(payload json.RawMessage) error {
	return d.mgr.Send(d.serviceID, payload)
}

// call implements a synchronous request/response round trip over the
// child's stdin/stdout, correlated by the payload's JSON-RPC id.
func (d *stdioDispatcher) call(ctx context.Context, payload json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, api.NewGatewayError(api.KindInvalidRequest, "payload has no id", err)
	}
	key := string(probe.ID)

	ch := make(chan json.RawMessage, 1)
	d.mu.Lock()
	d.pending[key] = ch
	d.mu.Unlock()

	if err := d.mgr.Send(d.serviceID, payload); err != nil {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, api.NewGatewayError(api.KindStdioCrashed, "service exited before replying", nil).WithService(d.serviceID)
		}
		return msg, nil
	case <-timer.C:
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		return nil, api.NewGatewayError(api.KindStdioTimeout, "timed out waiting for response", nil).WithService(d.serviceID)
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		return nil, ctx.Err()
	}
}
