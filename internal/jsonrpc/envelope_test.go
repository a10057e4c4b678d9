package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_IsNotification(t *testing.T) {
	var withID Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), &withID))
	assert.False(t, withID.IsNotification())

	var without Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), &without))
	assert.True(t, without.IsNotification())
}

func TestNewError_RoundTrips(t *testing.T) {
	resp := NewError(json.RawMessage("7"), CodeMethodNotFound, "Tool not found: A/write", nil)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"Tool not found: A/write"}}`, string(data))
}

func TestNewResult_OmitsError(t *testing.T) {
	resp := NewResult(json.RawMessage(`"abc"`), map[string]string{"ok": "true"})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"abc","result":{"ok":"true"}}`, string(data))
}
