// Package tools implements the Swift analysis tools exposed over MCP.
//
// Every tool follows the same shape: validate parameters, validate the file
// path, acquire the project's language server session from the registry, run
// the operation and render a JSON payload. Failures are reported inside the
// tool result with an error_type label so the calling agent can distinguish
// bad input from a missing index from a dead language server.
package tools
