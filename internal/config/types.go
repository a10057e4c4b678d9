package config

import "muster-gateway/internal/api"

// GatewayConfig is the persisted gateway_config singleton.
type GatewayConfig struct {
	Port                int      `yaml:"port"` // 0 means ephemeral
	AuthToken           string   `yaml:"authToken"`
	Enabled             bool     `yaml:"enabled"`
	AutoStart           bool     `yaml:"autoStart"`
	SessionTTLMinutes   int64    `yaml:"sessionTtlMinutes"`
	AllowedOriginExtras []string `yaml:"allowedOriginExtras,omitempty"`

	// Ambient knobs not carried by the distilled config surface but
	// implied by the component design.
	MaxSessions       int `yaml:"maxSessions,omitempty"`
	StderrRingBufferB int `yaml:"stderrRingBufferBytes,omitempty"`
	RootsQueueSize    int `yaml:"rootsQueueSize,omitempty"`
	RouterCacheSize   int `yaml:"routerCacheSize,omitempty"`
}

// ProjectServiceOverride is one row of the project_service_overrides table.
type ProjectServiceOverride struct {
	ProjectID string         `yaml:"projectId"`
	ServiceID string         `yaml:"serviceId"`
	Policy    api.ToolPolicy `yaml:"policy"`
}

// ProjectPathEntry is one row of the project_paths table (feeds the
// ContextRouter / ProjectStore).
type ProjectPathEntry struct {
	Path        string `yaml:"path"`
	ProjectID   string `yaml:"projectId"`
	ProjectName string `yaml:"projectName"`
	Ordinal     uint64 `yaml:"ordinal"`
}

// PersistedState is the whole on-disk document: gateway_config plus the
// services, project-service-overrides and project-paths tables. A single
// YAML file is the simplest external-storage shape for a single-host
// gateway.
type PersistedState struct {
	Gateway   GatewayConfig            `yaml:"gateway"`
	Services  []api.ServiceDefinition  `yaml:"services"`
	Overrides []ProjectServiceOverride `yaml:"projectServiceOverrides"`
	Paths     []ProjectPathEntry       `yaml:"projectPaths"`
}
