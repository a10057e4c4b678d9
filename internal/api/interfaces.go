package api

import "context"

// ServiceRepository is the external collaborator
// that yields normalized ServiceDefinition records and per-(project,
// service) policy overrides. The core only consumes this interface; the
// concrete implementation (config-file scanners, adapters for various AI
// tool configs) lives outside the gateway's hard core.
type ServiceRepository interface {
	// ListServices returns every known service definition, enabled or not.
	ListServices(ctx context.Context) ([]ServiceDefinition, error)
	// GetService looks up a single definition by id.
	GetService(ctx context.Context, id string) (ServiceDefinition, bool, error)
	// ProjectOverride returns the ToolPolicy override for (projectID,
	// serviceID), if one has been recorded.
	ProjectOverride(ctx context.Context, projectID, serviceID string) (ToolPolicy, bool, error)
}

// ProjectStore is the external collaborator that resolves a filesystem path
// to a project id via longest-prefix match. The gateway's own ContextRouter
// is the in-process LPM engine; ProjectStore is the thing that actually
// owns the registered path table.
type ProjectStore interface {
	// RegisteredPaths returns every registered (path, projectID, projectName,
	// createdAt-ordinal) entry the router should index. The ordinal is used
	// as the deterministic tie-breaker for equal-length matches.
	RegisteredPaths(ctx context.Context) ([]ProjectPath, error)
	// Version reports a monotonically increasing generation counter, bumped
	// on every registration change, so the router's cache can detect
	// staleness.
	Version(ctx context.Context) (uint64, error)
}

// ProjectPath is one entry of the project-paths table.
type ProjectPath struct {
	Path        string
	ProjectID   string
	ProjectName string
	Ordinal     uint64 // increasing with creation order
}

// SecretProvider resolves a named secret referenced by a `$VAR` sigil inside
// env_template/headers_template. Secret storage itself is out of
// scope for the gateway; this is the minimal interface the templating
// resolver needs.
type SecretProvider interface {
	Secret(name string) (string, bool)
}
