package gateway

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"muster-gateway/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.GatewayConfig {
	cfg := config.DefaultGatewayConfig()
	cfg.Port = 0 // ephemeral
	return cfg
}

func TestManager_StartServesHealthAndStopIsClean(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	mgr := NewManager(statePath)

	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx, testConfig()))

	status := mgr.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.NotZero(t, status.Port)

	waitForHealth(t, status.Port)

	require.NoError(t, mgr.Stop(ctx))
	assert.Equal(t, StateStopped, mgr.Status().State)
}

func TestManager_StopOnStoppedIsNoOp(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	mgr := NewManager(statePath)

	require.NoError(t, mgr.Stop(context.Background()))
	assert.Equal(t, StateStopped, mgr.Status().State)
}

func TestManager_StartWhileRunningFails(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	mgr := NewManager(statePath)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, testConfig()))
	defer mgr.Stop(ctx)

	err := mgr.Start(ctx, testConfig())
	assert.Error(t, err)
}

func TestManager_RestartBindsNewConfigAndStaysUp(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	mgr := NewManager(statePath)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, testConfig()))
	firstPort := mgr.Status().Port

	require.NoError(t, mgr.Restart(ctx, 0))
	status := mgr.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.NotZero(t, status.Port)

	waitForHealth(t, status.Port)
	_ = firstPort

	require.NoError(t, mgr.Stop(ctx))
}

func waitForHealth(t *testing.T, port int) {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("gateway never became healthy on port %d: %v", port, lastErr)
}
