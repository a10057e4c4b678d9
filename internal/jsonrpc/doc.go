// Package jsonrpc defines the minimal JSON-RPC 2.0 envelope the gateway's
// HTTP layer and upstream clients pass around. It deliberately does not
// reuse mcp-go's internal JSON-RPC plumbing: the gateway needs a generic
// id/error-code envelope it can parse before it knows the method, something
// mcp-go's typed request/result structs are not built for.
package jsonrpc
