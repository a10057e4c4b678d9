package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// sessionRemovalGrace is how long the GET /mcp cleanup guard waits before
// removing a dropped stream's session. The removal is unconditional: a
// stream reopened for the same session within the grace period does not
// cancel it.
const sessionRemovalGrace = 5 * time.Second

// handleMCPGet implements the resumable server-to-client SSE stream:
// create-or-resume a session, register its outbound channel, emit a 30s
// keepalive, and consume the channel registry's queue until the client
// disconnects.
func (s *Server) handleMCPGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONRPCError(w, http.StatusInternalServerError, -32603, "Streaming unsupported")
		return
	}

	sessID := r.Header.Get(sessionHeader)
	sess := s.sessions.Get(sessID)
	if sess == nil {
		created, err := s.sessions.Create()
		if err != nil {
			writeJSONRPCError(w, http.StatusServiceUnavailable, -32000, err.Error())
			return
		}
		sess = created
		sessID = sess.SessionID
	} else {
		s.sessions.Touch(sessID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(sessionHeader, sessID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.stats.activeConnections.Add(1)
	s.stats.totalConnections.Add(1)
	defer s.stats.activeConnections.Add(-1)

	outbound := s.channels.Register(sessID)

	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-outbound:
			if !ok {
				s.endStream(sessID)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			s.endStream(sessID)
			return
		}
	}
}

// endStream deregisters sessID's channel and schedules its session for
// removal after sessionRemovalGrace, whether or not the client reconnects
// in the meantime.
func (s *Server) endStream(sessID string) {
	s.channels.Deregister(sessID)
	go func() {
		time.Sleep(sessionRemovalGrace)
		s.sessions.Remove(sessID)
	}()
}
