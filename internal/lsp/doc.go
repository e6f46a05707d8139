// Package lsp manages sourcekit-lsp sessions for swiftlens.
//
// One session exists per Swift project root. A session owns the backend
// process, a Content-Length-framed JSON-RPC transport over its stdio, and a
// request multiplexer that correlates asynchronous responses with waiting
// callers. Sessions are created lazily on first use, reused across tool
// calls, and evicted when the backend dies or the session sits idle.
//
// # Architecture
//
//   - Transport: Content-Length framing, encode/decode only
//   - Mux: correlation ids, pending-request slots, inbound dispatch
//   - Process: sourcekit-lsp subprocess lifecycle
//   - Session: handshake plus the typed operations the tool layer uses
//   - Registry: the one-session-per-root map with idle eviction
//
// # Quick Start
//
//	reg := lsp.NewRegistry(lsp.DefaultRegistryConfig(), logger)
//	defer reg.ShutdownAll()
//
//	sess, err := reg.Acquire(ctx, "/path/to/project")
//	if err != nil {
//	    return err
//	}
//	text, err := sess.Hover(ctx, "/path/to/project/Sources/App/main.swift",
//	    lsp.Position{Line: 10, Character: 5})
//
// # Failure Model
//
// Per-request failures (ErrRequestTimeout, ErrInvalidResponse) are returned
// to the caller and leave the session usable. Channel-level failures
// (ErrFraming, a dead process) fail every pending request with
// ErrBackendDisconnected and evict the session, so the next Acquire for that
// root starts fresh. Failures never propagate between project roots.
//
// # Thread Safety
//
// The Registry and each Session are safe for concurrent use. Independent
// sessions share no locks and proceed fully in parallel.
package lsp
