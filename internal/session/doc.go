// Package session implements McpSessionStore: the
// per-connection MCP session table keyed by a UUIDv4 session id, tracking
// negotiated protocol version, roots/project binding, and idle expiry.
package session
