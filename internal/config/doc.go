// Package config loads and persists the gateway's configuration surface:
// the gateway_config singleton (port, auth token, session TTL, origin
// allowlist extras) and the services / project_service_overrides /
// project_paths tables, all modeled as a single YAML document for
// this single-host, non-clustered deployment.
package config
