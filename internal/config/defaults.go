package config

import "github.com/google/uuid"

const (
	// DefaultSessionTTLMinutes matches session_ttl_minutes default.
	DefaultSessionTTLMinutes = 30
	// DefaultMaxSessions bounds how many concurrent sessions the gateway
	// will track before new connections are rejected.
	DefaultMaxSessions = 10000
	// DefaultStderrRingBufferBytes is the expansion's ring-buffer size.
	DefaultStderrRingBufferBytes = 64 * 1024
	// DefaultRootsQueueSize is the expansion's bounded SSE queue size.
	DefaultRootsQueueSize = 16
	// DefaultRouterCacheSize is the LRU cache capacity.
	DefaultRouterCacheSize = 100
)

// DefaultGatewayConfig returns a GatewayConfig with every field at its
// default, including a freshly generated auth token.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Port:              0,
		AuthToken:         uuid.NewString(),
		Enabled:           true,
		AutoStart:         true,
		SessionTTLMinutes: DefaultSessionTTLMinutes,
		MaxSessions:       DefaultMaxSessions,
		StderrRingBufferB: DefaultStderrRingBufferBytes,
		RootsQueueSize:    DefaultRootsQueueSize,
		RouterCacheSize:   DefaultRouterCacheSize,
	}
}

// DefaultPersistedState returns an empty PersistedState with the gateway
// config defaulted.
func DefaultPersistedState() PersistedState {
	return PersistedState{Gateway: DefaultGatewayConfig()}
}
