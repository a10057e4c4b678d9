package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	state, err := Load(filepath.Join(dir, "state.yaml"))
	require.NoError(t, err)

	assert.True(t, state.Gateway.Enabled)
	assert.True(t, state.Gateway.AutoStart)
	assert.Equal(t, int64(DefaultSessionTTLMinutes), state.Gateway.SessionTTLMinutes)
	assert.NotEmpty(t, state.Gateway.AuthToken)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.yaml")

	state := DefaultPersistedState()
	state.Gateway.Port = 8765
	state.Services = append(state.Services, sampleStdioService("svc-a"))

	require.NoError(t, Save(path, state))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8765, loaded.Gateway.Port)
	require.Len(t, loaded.Services, 1)
	assert.Equal(t, "svc-a", loaded.Services[0].ID)
}

func TestLoad_RejectsInvalidState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	state := DefaultPersistedState()
	state.Gateway.AuthToken = ""
	require.NoError(t, Save(path, state))

	_, err := Load(path)
	assert.Error(t, err)
}
