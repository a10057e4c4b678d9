// Package configrepo adapts the persisted config.PersistedState document
// into the three external collaborator interfaces the gateway's core
// consumes (api.ServiceRepository, api.ProjectStore, api.SecretProvider).
// This is the concrete edge muster's own CRD-backed reconciler would
// otherwise occupy; for this single-host gateway the "external system" is
// just the YAML state file on disk.
package configrepo

import (
	"context"
	"os"
	"sync"

	"muster-gateway/internal/api"
	"muster-gateway/internal/config"
)

// Repository serves ServiceRepository and ProjectStore reads out of an
// in-memory copy of config.PersistedState, reloadable from disk. Version is
// bumped on every Reload so router.ContextRouter's cache can detect
// staleness.
type Repository struct {
	path string

	mu      sync.RWMutex
	state   config.PersistedState
	version uint64
}

// New constructs a Repository already holding state (typically the result
// of config.Load(path)).
func New(path string, state config.PersistedState) *Repository {
	return &Repository{path: path, state: state, version: 1}
}

// Reload re-reads the state file from disk, replacing the in-memory copy
// and bumping Version.
func (r *Repository) Reload() error {
	state, err := config.Load(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.state = state
	r.version++
	r.mu.Unlock()
	return nil
}

// Snapshot returns the current in-memory state, e.g. for a CLI status
// command or before mutating and saving it back.
func (r *Repository) Snapshot() config.PersistedState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Replace swaps in a new state and persists it to disk, bumping Version.
// Used by service add/remove/enable CLI operations.
func (r *Repository) Replace(state config.PersistedState) error {
	if err := config.Save(r.path, state); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = state
	r.version++
	r.mu.Unlock()
	return nil
}

// ListServices implements api.ServiceRepository.
func (r *Repository) ListServices(ctx context.Context) ([]api.ServiceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.ServiceDefinition, len(r.state.Services))
	copy(out, r.state.Services)
	return out, nil
}

// GetService implements api.ServiceRepository.
func (r *Repository) GetService(ctx context.Context, id string) (api.ServiceDefinition, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, svc := range r.state.Services {
		if svc.ID == id {
			return svc, true, nil
		}
	}
	return api.ServiceDefinition{}, false, nil
}

// ProjectOverride implements api.ServiceRepository.
func (r *Repository) ProjectOverride(ctx context.Context, projectID, serviceID string) (api.ToolPolicy, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.state.Overrides {
		if o.ProjectID == projectID && o.ServiceID == serviceID {
			return o.Policy, true, nil
		}
	}
	return api.ToolPolicy{}, false, nil
}

// RegisteredPaths implements api.ProjectStore.
func (r *Repository) RegisteredPaths(ctx context.Context) ([]api.ProjectPath, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.ProjectPath, len(r.state.Paths))
	for i, p := range r.state.Paths {
		out[i] = api.ProjectPath{Path: p.Path, ProjectID: p.ProjectID, ProjectName: p.ProjectName, Ordinal: p.Ordinal}
	}
	return out, nil
}

// Version implements api.ProjectStore.
func (r *Repository) Version(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version, nil
}

// EnvSecretProvider resolves secrets from the process environment, the
// only secret store this gateway owns directly.
type EnvSecretProvider struct{}

// Secret implements api.SecretProvider.
func (EnvSecretProvider) Secret(name string) (string, bool) {
	return os.LookupEnv(name)
}
