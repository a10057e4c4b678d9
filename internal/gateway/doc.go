// Package gateway implements the HTTP server and its lifecycle manager:
// the composed middleware chain (origin, auth, session), the MCP
// Streamable HTTP route table, the legacy SSE transport, and the
// bind/start/stop/restart lifecycle.
package gateway
