package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusCmd(t *testing.T) {
	c := newStatusCmd()
	assert.Equal(t, "status", c.Use)
	assert.NotEmpty(t, c.Short)
}

func TestProbeHealth_Unreachable(t *testing.T) {
	_, err := probeHealth(1) // port 1 is reserved, nothing listens there
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestProbeHealth_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthBody{Status: "ok", Service: "muster-gateway", Version: "1.0.0"})
	}))
	defer srv.Close()

	portStr := srv.Listener.Addr().String()
	_, after, found := cutLastColon(portStr)
	require.True(t, found)
	port, err := strconv.Atoi(after)
	require.NoError(t, err)

	health, err := probeHealth(port)
	require.NoError(t, err)
	assert.Equal(t, "muster-gateway", health.Service)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestProbeHealth_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	portStr := srv.Listener.Addr().String()
	_, after, found := cutLastColon(portStr)
	require.True(t, found)
	port, err := strconv.Atoi(after)
	require.NoError(t, err)

	_, probeErr := probeHealth(port)
	require.Error(t, probeErr)
	assert.Contains(t, probeErr.Error(), "status 500")
}

func cutLastColon(s string) (string, string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
