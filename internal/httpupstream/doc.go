// Package httpupstream implements the HTTP upstream client: a
// JSON-RPC-over-POST client for a single remote MCP Streamable HTTP
// service, with SSE-framed response parsing and Mcp-Session-Id stickiness
// that clears on any 404.
//
// This is hand-rolled on net/http rather than mcp-go's streamable-http
// client (see DESIGN.md): the session-id capture/clear/retry control flow
// here is gateway-specific and mcp-go's client keeps its session state
// private.
package httpupstream
