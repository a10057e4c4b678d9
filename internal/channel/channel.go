package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"muster-gateway/internal/api"
	"muster-gateway/pkg/logging"
)

// DefaultQueueSize is the bounded outbound SSE queue capacity.
const DefaultQueueSize = 16

// DefaultRootsTimeout is the default wait for a roots/list round trip
// when the caller supplies no explicit timeout.
const DefaultRootsTimeout = 5 * time.Second

type pending struct {
	reply chan json.RawMessage
}

// sessionChannel is the per-session state: an outbound queue of framed SSE
// payloads plus the pending-request map scoped to this session's stream
// lifetime.
type sessionChannel struct {
	outbound chan json.RawMessage

	mu      sync.Mutex
	pending map[string]*pending
}

// Registry owns one sessionChannel per active GET /mcp stream.
type Registry struct {
	queueSize int

	mu       sync.Mutex
	sessions map[string]*sessionChannel
}

// NewRegistry constructs a Registry. queueSize <= 0 uses DefaultQueueSize.
func NewRegistry(queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Registry{queueSize: queueSize, sessions: make(map[string]*sessionChannel)}
}

// Register opens the outbound queue for sessionID's SSE stream and returns
// it for the handler to drain. Calling Register again for an already-open
// session replaces the previous channel (a reconnect).
func (r *Registry) Register(sessionID string) <-chan json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	sc := &sessionChannel{
		outbound: make(chan json.RawMessage, r.queueSize),
		pending:  make(map[string]*pending),
	}
	r.sessions[sessionID] = sc
	return sc.outbound
}

// Deregister closes sessionID's SSE stream and fails every pending request
// still waiting on it.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	sc, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return
	}

	sc.mu.Lock()
	for id, p := range sc.pending {
		close(p.reply)
		delete(sc.pending, id)
	}
	sc.mu.Unlock()
}

// SendRequestAndWait implements send_request_and_wait:
//  1. register a pending entry for requestID
//  2. enqueue payload onto the session's SSE channel
//  3. wait up to timeout; on timeout, remove the pending entry
func (r *Registry) SendRequestAndWait(ctx context.Context, sessionID, requestID string, payload json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultRootsTimeout
	}

	r.mu.Lock()
	sc, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, api.ErrNoChannel
	}

	p := &pending{reply: make(chan json.RawMessage, 1)}
	sc.mu.Lock()
	sc.pending[requestID] = p
	sc.mu.Unlock()

	select {
	case sc.outbound <- payload:
	default:
		sc.mu.Lock()
		delete(sc.pending, requestID)
		sc.mu.Unlock()
		return nil, api.ErrNoChannel
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, chanOK := <-p.reply:
		if !chanOK {
			return nil, api.ErrNoChannel
		}
		return reply, nil
	case <-timer.C:
		sc.mu.Lock()
		delete(sc.pending, requestID)
		sc.mu.Unlock()
		logging.Debug("Channel", "roots/list request %s timed out for session %s", requestID, logging.TruncateSessionID(sessionID))
		return nil, api.ErrTimeout
	case <-ctx.Done():
		sc.mu.Lock()
		delete(sc.pending, requestID)
		sc.mu.Unlock()
		return nil, ctx.Err()
	}
}

// HandleClientResponse pops the pending entry for requestID and delivers
// value, reporting whether a match was found. A repeated call for the same
// requestID returns false.
func (r *Registry) HandleClientResponse(sessionID, requestID string, value json.RawMessage) bool {
	r.mu.Lock()
	sc, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	sc.mu.Lock()
	p, ok := sc.pending[requestID]
	if ok {
		delete(sc.pending, requestID)
	}
	sc.mu.Unlock()
	if !ok {
		return false
	}

	p.reply <- value
	return true
}
