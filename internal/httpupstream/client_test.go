package httpupstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"muster-gateway/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Mcp-Session-Id", "sess-1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	result, err := c.SendRequest(t.Context(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	assert.Contains(t, string(result), `"ok":true`)

	sid, ok := c.SessionID()
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sid)
}

func TestSendRequest_SSEResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"x\":1}}\n\n"))
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	result, err := c.SendRequest(t.Context(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Contains(t, string(result), `"x":1`)
}

func TestSendRequest_SSEWithoutDataLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keepalive\n\n"))
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	_, err := c.SendRequest(t.Context(), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestSendRequest_404ClearsSession(t *testing.T) {
	first := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first {
			first = false
			w.Header().Set("Mcp-Session-Id", "sess-2")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
			return
		}
		assert.Empty(t, r.Header.Get("Mcp-Session-Id"), "stale session id must not be resent after 404")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	_, err := c.SendRequest(t.Context(), json.RawMessage(`{}`))
	require.NoError(t, err)
	_, ok := c.SessionID()
	require.True(t, ok)

	_, err = c.SendRequest(t.Context(), json.RawMessage(`{}`))
	require.Error(t, err)
	ge, ok := api.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ge.Status)

	_, hasSession := c.SessionID()
	assert.False(t, hasSession)

	// A third call must not resend the stale id.
	_, err = c.SendRequest(t.Context(), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestSendRequest_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	_, err := c.SendRequest(t.Context(), json.RawMessage(`{}`))
	require.Error(t, err)
	ge, ok := api.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, ge.Status)
}

func TestInitialize_UsesProtocolVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params struct {
				ProtocolVersion string `json:"protocolVersion"`
			} `json:"params"`
		}
		body, _ := json.Marshal(&req)
		_ = body
		dec := json.NewDecoder(r.Body)
		require.NoError(t, dec.Decode(&req))
		assert.Equal(t, ProtocolVersion, req.Params.ProtocolVersion)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2025-03-26"}}`))
	}))
	defer srv.Close()

	c := NewClient("svc", srv.URL, nil)
	_, err := c.Initialize(t.Context())
	require.NoError(t, err)
}
