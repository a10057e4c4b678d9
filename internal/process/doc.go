// Package process implements the gateway's StdioProcessManager: spawning and supervising stdio MCP subprocesses, piping
// newline-delimited JSON-RPC over stdin/stdout, capturing stderr into a
// bounded ring buffer, and enforcing at-most-one live child per service id
// with no automatic restart on crash.
//
// This is hand-rolled on os/exec rather than delegated to mcp-go's stdio
// client (see DESIGN.md): the gateway needs explicit access to the crash
// state and stderr tail that mcp-go's client keeps private.
package process
