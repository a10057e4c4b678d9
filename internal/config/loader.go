package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"muster-gateway/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir = ".config/muster-gateway"
	stateFileName = "state.yaml"
)

// DefaultStatePathOrPanic returns the fixed dotfile location under the
// user's home directory.
func DefaultStatePathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir, stateFileName)
}

// Load reads the persisted state document at path. A missing file is not an
// error — it returns DefaultPersistedState().
func Load(path string) (PersistedState, error) {
	state := DefaultPersistedState()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No state file found at %s, using defaults", path)
			return state, nil
		}
		return PersistedState{}, fmt.Errorf("reading state file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &state); err != nil {
		return PersistedState{}, fmt.Errorf("parsing state file %s: %w", path, err)
	}

	if err := Validate(&state); err != nil {
		return PersistedState{}, fmt.Errorf("invalid state in %s: %w", path, err)
	}

	logging.Info("Config", "Loaded state from %s (%d services)", path, len(state.Services))
	return state, nil
}

// Save marshals state and writes it to path, creating parent directories as
// needed. Used by GatewayServerManager.Restart.
func Save(path string, state PersistedState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing state file %s: %w", path, err)
	}

	logging.Info("Config", "Saved state to %s", path)
	return nil
}
