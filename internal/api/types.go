package api

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// TransportKind identifies how the gateway speaks to an upstream MCP server.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// StdioTransport describes a subprocess-based upstream.
type StdioTransport struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	EnvTemplate map[string]string `yaml:"envTemplate,omitempty"`
}

// HTTPTransport describes a remote Streamable HTTP upstream.
type HTTPTransport struct {
	URL             string            `yaml:"url"`
	HeadersTemplate map[string]string `yaml:"headersTemplate,omitempty"`
}

// ServiceDefinition is the normalized record yielded by the ServiceRepository
// external collaborator for a single upstream MCP server.
type ServiceDefinition struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	Transport     TransportKind   `yaml:"transport"`
	Stdio         *StdioTransport `yaml:"stdio,omitempty"`
	HTTP          *HTTPTransport  `yaml:"http,omitempty"`
	DefaultPolicy ToolPolicy      `yaml:"defaultPolicy,omitempty"`
}

// PolicyKind is the discriminant of the ToolPolicy sum type.
type PolicyKind string

const (
	PolicyAllowAll PolicyKind = "allow_all"
	PolicyDenyAll  PolicyKind = "deny_all"
	PolicyCustom   PolicyKind = "custom"
	PolicyInherit  PolicyKind = "inherit"
)

// ToolPolicy is the tagged union from AllowAll | DenyAll |
// Custom{allowed} | Inherit. Kind is always set; Allowed is only meaningful
// when Kind == PolicyCustom.
type ToolPolicy struct {
	Kind    PolicyKind `yaml:"kind"`
	Allowed []string   `yaml:"allowed,omitempty"`
}

// AllowAllPolicy, DenyAllPolicy and InheritPolicy are the zero-argument
// policy values; CustomPolicy builds the Custom{allowed} variant.
func AllowAllPolicy() ToolPolicy { return ToolPolicy{Kind: PolicyAllowAll} }
func DenyAllPolicy() ToolPolicy  { return ToolPolicy{Kind: PolicyDenyAll} }
func InheritPolicy() ToolPolicy  { return ToolPolicy{Kind: PolicyInherit} }
func CustomPolicy(allowed ...string) ToolPolicy {
	return ToolPolicy{Kind: PolicyCustom, Allowed: allowed}
}

// IsZero reports whether the policy was never set (distinct from an
// explicit Inherit — the YAML zero value for ToolPolicy has an empty Kind).
func (p ToolPolicy) IsZero() bool { return p.Kind == "" }

// Allows implements 4.F's allows(policy, tool_name): AllowAll -> true,
// DenyAll -> false, Custom{set} -> membership, Inherit -> true (defensive
// default; effective() is expected to have already resolved Inherit away).
func (p ToolPolicy) Allows(toolName string) bool {
	switch p.Kind {
	case PolicyAllowAll:
		return true
	case PolicyDenyAll:
		return false
	case PolicyCustom:
		for _, a := range p.Allowed {
			if a == toolName {
				return true
			}
		}
		return false
	case PolicyInherit:
		return true
	default:
		return true
	}
}

// ToolDescriptor, ResourceDescriptor and PromptDescriptor are the gateway's
// own wire-shape aliases over mcp-go's types. The JSON shape the gateway must
// emit is exactly MCP's; keeping the alias gives every other package a
// stable name to import instead of reaching into mcp-go directly.
type (
	ToolDescriptor     = mcp.Tool
	ResourceDescriptor = mcp.Resource
	PromptDescriptor   = mcp.Prompt
)

// ServiceCapabilities is the aggregator's per-service cache entry.
type ServiceCapabilities struct {
	Tools       []ToolDescriptor
	Resources   []ResourceDescriptor
	Prompts     []PromptDescriptor
	FetchedAt   time.Time
	VersionSeen uint64
}
