package config

import (
	"fmt"

	"muster-gateway/internal/api"
)

// Validate checks invariants that apply across the whole persisted state: a
// startup-time check, not a per-request one (lifecycle errors abort start()
// per ).
func Validate(state *PersistedState) error {
	if state.Gateway.Port < 0 || state.Gateway.Port > 65535 {
		return fmt.Errorf("port %d out of range", state.Gateway.Port)
	}
	if state.Gateway.SessionTTLMinutes <= 0 {
		state.Gateway.SessionTTLMinutes = DefaultSessionTTLMinutes
	}
	if state.Gateway.MaxSessions <= 0 {
		state.Gateway.MaxSessions = DefaultMaxSessions
	}
	if state.Gateway.AuthToken == "" {
		return fmt.Errorf("authToken must not be empty")
	}

	seen := make(map[string]struct{}, len(state.Services))
	for _, svc := range state.Services {
		if svc.ID == "" {
			return fmt.Errorf("service definition missing id")
		}
		if _, dup := seen[svc.ID]; dup {
			return fmt.Errorf("duplicate service id %q", svc.ID)
		}
		seen[svc.ID] = struct{}{}

		switch svc.Transport {
		case api.TransportStdio:
			if svc.Stdio == nil || svc.Stdio.Command == "" {
				return fmt.Errorf("service %q: stdio transport requires a command", svc.ID)
			}
		case api.TransportHTTP:
			if svc.HTTP == nil || svc.HTTP.URL == "" {
				return fmt.Errorf("service %q: http transport requires a url", svc.ID)
			}
		default:
			return fmt.Errorf("service %q: unknown transport %q", svc.ID, svc.Transport)
		}
	}

	return nil
}
