// Package dashboard is the optional local observability surface: every tool
// invocation is recorded to an embedded store and streamed to connected
// browsers over a websocket.
//
// The dashboard is off by default, binds to loopback only, and failures in
// it never fail a tool call. Records expire after a week.
package dashboard
