package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the session manager.
var (
	// ErrSpawn indicates the sourcekit-lsp process could not be started.
	ErrSpawn = errors.New("failed to spawn sourcekit-lsp")

	// ErrHandshakeTimeout indicates the initialize response did not arrive
	// within the handshake deadline.
	ErrHandshakeTimeout = errors.New("initialize handshake timed out")

	// ErrHandshakeNotComplete indicates an operation was attempted before
	// the session finished its initialize handshake.
	ErrHandshakeNotComplete = errors.New("session handshake not complete")

	// ErrRequestTimeout indicates a single request exceeded its deadline.
	// The session itself remains usable.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrBackendDisconnected indicates the backend process exited or the
	// transport failed. The session is dead and must be replaced.
	ErrBackendDisconnected = errors.New("sourcekit-lsp disconnected")

	// ErrInvalidResponse indicates a malformed or semantically empty payload
	// from the backend (e.g. no symbol at the requested position).
	ErrInvalidResponse = errors.New("invalid response from sourcekit-lsp")

	// ErrFraming indicates malformed Content-Length framing on the inbound
	// stream. Fatal to the whole channel.
	ErrFraming = errors.New("malformed message framing")

	// ErrSessionClosed indicates the session was closed or evicted and can
	// no longer answer requests.
	ErrSessionClosed = errors.New("session closed")

	// ErrRegistryClosed indicates the registry has been shut down.
	ErrRegistryClosed = errors.New("session registry closed")
)

// RPCError represents a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeRequestFailed        = -32803
)

// SessionError wraps an error with the project root it occurred for.
type SessionError struct {
	Root string
	Err  error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Root, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}
