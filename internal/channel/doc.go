// Package channel implements the server-to-client channel: a per-session
// bounded outbound SSE queue plus a pending-request registry used to
// correlate server-initiated calls (roots/list and similar) with the
// client's eventual POST /mcp response.
package channel
