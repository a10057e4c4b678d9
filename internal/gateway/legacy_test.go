package gateway

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandleLegacySSE_EmitsEndpointEvent exercises the deprecated GET /sse
// handler end to end: it must emit the "endpoint" SSE event naming the
// /message URL, which also means logLegacyDeprecation() ran without
// panicking along that path.
func TestHandleLegacySSE_EmitsEndpointEvent(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/sse", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	reader := bufio.NewReader(strings.NewReader(rec.Body.String()))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: endpoint\n", line)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, dataLine, "data: /message?session_id=")
}

// TestHandleLegacyMessage_InitializeThenDispatch exercises the
// initialize-then-ping sequence over the deprecated POST /message path,
// which also runs through logLegacyDeprecation() on both calls.
func TestHandleLegacyMessage_InitializeThenDispatch(t *testing.T) {
	s := newTestServer(t)

	initReq := httptest.NewRequest("POST", "/message", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	initReq.Header.Set("Authorization", "Bearer "+testToken)
	initRec := httptest.NewRecorder()
	s.ServeHTTP(initRec, initReq)
	require.Equal(t, 200, initRec.Code)

	// The legacy transport correlates follow-up calls by internal id via
	// ?session_id=, not by the MCP-Session-Id header used by /mcp.
	sess := s.sessions.CreateTransient()
	sess.Initialize("2025-03-26", "", "", nil)

	pingReq := httptest.NewRequest("POST", "/message?session_id="+sess.InternalID(),
		strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"ping"}`))
	pingReq.Header.Set("Authorization", "Bearer "+testToken)
	pingRec := httptest.NewRecorder()
	s.ServeHTTP(pingRec, pingReq)
	assert.Equal(t, 200, pingRec.Code)
}

func TestHandleLegacyMessage_UninitializedSessionRejected(t *testing.T) {
	s := newTestServer(t)

	sess := s.sessions.CreateTransient()

	req := httptest.NewRequest("POST", "/message?session_id="+sess.InternalID(),
		strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"ping"}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session not initialized")
}
