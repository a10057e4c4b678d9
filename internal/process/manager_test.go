package process

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnSendSubscribe_EchoesLines(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	// cat echoes stdin to stdout unmodified, giving us a deterministic
	// newline-delimited JSON echo without depending on a real MCP server.
	require.NoError(t, m.Spawn(ctx, "svc-a", "cat", nil, nil))
	defer m.Shutdown("svc-a", 0)

	sub, err := m.SubscribeResponses("svc-a")
	require.NoError(t, err)

	require.NoError(t, m.Send("svc-a", json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))

	select {
	case msg := <-sub:
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed response")
	}

	info, ok := m.Status("svc-a")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, info.Status)
}

func TestSpawn_RejectsSecondLiveChild(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	require.NoError(t, m.Spawn(ctx, "svc-b", "cat", nil, nil))
	defer m.Shutdown("svc-b", 0)

	err := m.Spawn(ctx, "svc-b", "cat", nil, nil)
	assert.Error(t, err)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	require.NoError(t, m.Spawn(ctx, "svc-c", "cat", nil, nil))
	require.NoError(t, m.Shutdown("svc-c", 50*time.Millisecond))
	require.NoError(t, m.Shutdown("svc-c", 50*time.Millisecond))

	_, ok := m.Status("svc-c")
	assert.False(t, ok)
}

func TestSend_ToUnknownServiceFails(t *testing.T) {
	m := NewManager(0)
	err := m.Send("nope", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestCrash_SetsStderrTail(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	require.NoError(t, m.Spawn(ctx, "svc-d", "sh", []string{"-c", "echo boom 1>&2; exit 7"}, nil))

	require.Eventually(t, func() bool {
		info, ok := m.Status("svc-d")
		return ok && info.Status == StatusCrashed
	}, 2*time.Second, 10*time.Millisecond)

	info, ok := m.Status("svc-d")
	require.True(t, ok)
	assert.Equal(t, 7, info.ExitCode)
	assert.Contains(t, info.Stderr, "boom")
}
