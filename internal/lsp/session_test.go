package lsp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeBackend writes a shell script that speaks just enough of the protocol
// to complete the handshake: it answers the initialize request (id 1), then
// optionally emits one canned reply for the first operation (id 2) via the
// REPLY_BODY env var, then drains stdin until EOF. DIE_AFTER_INIT makes it
// exit shortly after the handshake instead.
func fakeBackend(t *testing.T, env map[string]string) ProcessConfig {
	t.Helper()
	skipWithoutShell(t)

	script := `#!/bin/sh
if [ -n "$SPAWN_LOG" ]; then echo spawn >> "$SPAWN_LOG"; fi
read -r _ || exit 1
b='{"jsonrpc":"2.0","id":1,"result":{"capabilities":{"hoverProvider":true,"definitionProvider":true,"referencesProvider":true,"documentSymbolProvider":true},"serverInfo":{"name":"fake-sourcekit","version":"1.0"}}}'
printf 'Content-Length: %s\r\n\r\n%s' "${#b}" "$b"
if [ -n "$REPLY_BODY" ]; then
	sleep 0.5
	printf 'Content-Length: %s\r\n\r\n%s' "${#REPLY_BODY}" "$REPLY_BODY"
fi
if [ -n "$DIE_AFTER_INIT" ]; then
	sleep 0.3
	exit 1
fi
cat >/dev/null
`
	path := filepath.Join(t.TempDir(), "fake-sourcekit-lsp.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake backend: %v", err)
	}
	return ProcessConfig{
		Command:      "sh",
		Args:         []string{path},
		Env:          env,
		StartupProbe: 30 * time.Millisecond,
	}
}

// silentBackend accepts the connection and never answers anything.
func silentBackend(t *testing.T) ProcessConfig {
	t.Helper()
	skipWithoutShell(t)

	path := filepath.Join(t.TempDir(), "silent-lsp.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\ncat >/dev/null\n"), 0o755); err != nil {
		t.Fatalf("write fake backend: %v", err)
	}
	return ProcessConfig{Command: "sh", Args: []string{path}, StartupProbe: 30 * time.Millisecond}
}

func testTimeouts() Timeouts {
	return Timeouts{
		Handshake: 10 * time.Second,
		Request:   5 * time.Second,
		Terminate: 300 * time.Millisecond,
	}
}

// projectDir creates a throwaway root with one Swift source file.
func projectDir(t *testing.T) (root, file string) {
	t.Helper()
	root = t.TempDir()
	file = filepath.Join(root, "main.swift")
	content := "import Foundation\n\nfunc greet(name: String) -> String {\n    return \"Hello, \\(name)\"\n}\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return root, file
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateInitializing, "initializing"},
		{StateReady, "ready"},
		{StateDegraded, "degraded"},
		{StateClosed, "closed"},
		{SessionState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestSession_CheckReadyGating(t *testing.T) {
	tests := []struct {
		state SessionState
		want  error
	}{
		{StateUninitialized, ErrHandshakeNotComplete},
		{StateInitializing, ErrHandshakeNotComplete},
		{StateReady, nil},
		{StateDegraded, ErrBackendDisconnected},
		{StateClosed, ErrSessionClosed},
	}
	for _, tt := range tests {
		s := &Session{}
		s.state.Store(int32(tt.state))
		if err := s.checkReady(); !errors.Is(err, tt.want) {
			t.Errorf("checkReady in %v: got %v, want %v", tt.state, err, tt.want)
		}
	}
}

func TestOpenSession_Handshake(t *testing.T) {
	root, _ := projectDir(t)

	sess, err := OpenSession(root, fakeBackend(t, nil), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	if sess.State() != StateReady {
		t.Errorf("state: got %v, want ready", sess.State())
	}
	if sess.Root() != root {
		t.Errorf("root: got %q, want %q", sess.Root(), root)
	}
	if info := sess.ServerInfo(); info == nil || info.Name != "fake-sourcekit" {
		t.Errorf("server info: got %+v", info)
	}
	if !HasCapability(sess.Capabilities().HoverProvider) {
		t.Error("hover capability not recorded from initialize result")
	}
	if sess.PID() <= 0 {
		t.Errorf("pid: got %d", sess.PID())
	}
}

func TestOpenSession_SpawnFailure(t *testing.T) {
	cfg := ProcessConfig{Command: "no-such-lsp-server-binary"}
	_, err := OpenSession(t.TempDir(), cfg, testTimeouts(), nil)
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("got %v, want ErrSpawn", err)
	}

	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Errorf("got %T, want *SessionError", err)
	}
}

func TestOpenSession_HandshakeTimeout(t *testing.T) {
	timeouts := testTimeouts()
	timeouts.Handshake = 300 * time.Millisecond

	start := time.Now()
	_, err := OpenSession(t.TempDir(), silentBackend(t), timeouts, nil)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("got %v, want ErrHandshakeTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("failed open took %v, process teardown is stuck", elapsed)
	}
}

func TestSession_Hover(t *testing.T) {
	root, file := projectDir(t)

	reply := `{"jsonrpc":"2.0","id":2,"result":{"contents":{"kind":"markdown","value":"func greet(name: String) -> String"}}}`
	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"REPLY_BODY": reply}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	text, err := sess.Hover(context.Background(), file, Position{Line: 2, Character: 5})
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if !strings.Contains(text, "func greet") {
		t.Errorf("hover text: got %q", text)
	}
}

func TestSession_HoverEmptyResult(t *testing.T) {
	root, file := projectDir(t)

	reply := `{"jsonrpc":"2.0","id":2,"result":null}`
	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"REPLY_BODY": reply}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	_, err = sess.Hover(context.Background(), file, Position{Line: 0, Character: 0})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("hover on empty position: got %v, want ErrInvalidResponse", err)
	}
}

func TestSession_ReferencesEmptyIsNotAnError(t *testing.T) {
	root, file := projectDir(t)

	reply := `{"jsonrpc":"2.0","id":2,"result":[]}`
	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"REPLY_BODY": reply}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	locs, err := sess.References(context.Background(), file, Position{Line: 2, Character: 5}, true)
	if err != nil {
		t.Fatalf("References() error = %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("locations: got %d, want 0", len(locs))
	}
}

func TestSession_BackendRPCError(t *testing.T) {
	root, file := projectDir(t)

	reply := `{"jsonrpc":"2.0","id":2,"error":{"code":-32001,"message":"could not find symbol"}}`
	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"REPLY_BODY": reply}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	_, err = sess.DocumentSymbols(context.Background(), file)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %T (%v), want *RPCError", err, err)
	}
	if rpcErr.Code != -32001 {
		t.Errorf("code: got %d", rpcErr.Code)
	}

	// A backend error degrades nothing; the session stays ready.
	if sess.State() != StateReady {
		t.Errorf("state after RPC error: got %v, want ready", sess.State())
	}
}

func TestSession_RequestTimeout(t *testing.T) {
	root, file := projectDir(t)

	timeouts := testTimeouts()
	timeouts.Request = 300 * time.Millisecond

	sess, err := OpenSession(root, fakeBackend(t, nil), timeouts, nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	_, err = sess.Definition(context.Background(), file, Position{Line: 2, Character: 5})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("got %v, want ErrRequestTimeout", err)
	}

	// A timed-out request does not poison the session.
	if sess.State() != StateReady {
		t.Errorf("state after timeout: got %v, want ready", sess.State())
	}
}

func TestSession_BackendDeath(t *testing.T) {
	root, file := projectDir(t)

	evicted := make(chan string, 1)

	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"DIE_AFTER_INIT": "1"}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	sess.setOnFatal(func(root string) { evicted <- root })
	defer sess.Close()

	// The backend exits ~300ms after the handshake; this request either gets
	// failed mid-flight or is rejected once the session is degraded.
	_, err = sess.Hover(context.Background(), file, Position{Line: 2, Character: 5})
	if !errors.Is(err, ErrBackendDisconnected) {
		t.Fatalf("got %v, want ErrBackendDisconnected", err)
	}

	select {
	case got := <-evicted:
		if got != root {
			t.Errorf("eviction hook root: got %q, want %q", got, root)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("eviction hook never fired")
	}

	if sess.State() != StateDegraded {
		t.Errorf("state: got %v, want degraded", sess.State())
	}
}

func TestSession_Diagnostics(t *testing.T) {
	root, file := projectDir(t)

	uri := string(FilePathToURI(file))
	reply := fmt.Sprintf(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":%q,"diagnostics":[{"range":{"start":{"line":3,"character":4},"end":{"line":3,"character":10}},"severity":1,"message":"cannot find 'foo' in scope"}]}}`, uri)

	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"REPLY_BODY": reply}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	diags, err := sess.Diagnostics(context.Background(), file, 5*time.Second)
	if err != nil {
		t.Fatalf("Diagnostics() error = %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics: got %d, want 1", len(diags))
	}
	d := diags[0]
	if d.Severity != SeverityError {
		t.Errorf("severity: got %v", d.Severity)
	}
	if d.Range.Start.Line != 3 || d.Range.Start.Character != 4 {
		t.Errorf("range start: got %d:%d", d.Range.Start.Line, d.Range.Start.Character)
	}
	if !strings.Contains(d.Message, "cannot find") {
		t.Errorf("message: got %q", d.Message)
	}
}

func TestSession_DiagnosticsNonePublished(t *testing.T) {
	root, file := projectDir(t)

	sess, err := OpenSession(root, fakeBackend(t, nil), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	// The backend never publishes; the wait expires and that is an empty
	// result, not a failure.
	diags, err := sess.Diagnostics(context.Background(), file, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Diagnostics() error = %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics: got %d, want 0", len(diags))
	}
}

func TestSession_FatalHookInstalledAfterDeath(t *testing.T) {
	root, _ := projectDir(t)

	sess, err := OpenSession(root, fakeBackend(t, map[string]string{"DIE_AFTER_INIT": "1"}), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	// Let the backend die before the hook exists. The installation must
	// still fire it; otherwise the dead session lingers until the next
	// acquire stumbles over it.
	select {
	case <-sess.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("backend never exited")
	}

	evicted := make(chan string, 1)
	sess.setOnFatal(func(root string) { evicted <- root })

	select {
	case got := <-evicted:
		if got != root {
			t.Errorf("hook root: got %q, want %q", got, root)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hook installed after backend death never fired")
	}
}

func TestSession_ApplyEdit(t *testing.T) {
	root, file := projectDir(t)

	sess, err := OpenSession(root, fakeBackend(t, nil), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	rng := Range{
		Start: Position{Line: 3, Character: 4},
		End:   Position{Line: 3, Character: 30},
	}
	removed, added, err := sess.ApplyEdit(context.Background(), file, rng, "return \"Hi, \\(name)\"")
	if err != nil {
		t.Fatalf("ApplyEdit() error = %v", err)
	}
	if removed != 1 || added != 1 {
		t.Errorf("line counts: got -%d/+%d, want -1/+1", removed, added)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(content), `return "Hi, \(name)"`) {
		t.Errorf("edit not applied:\n%s", content)
	}
	if strings.Contains(string(content), `Hello`) {
		t.Errorf("old text still present:\n%s", content)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	root, file := projectDir(t)

	sess, err := OpenSession(root, fakeBackend(t, nil), testTimeouts(), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	sess.Close()
	sess.Close()

	if sess.State() != StateClosed {
		t.Errorf("state: got %v, want closed", sess.State())
	}

	_, err = sess.Hover(context.Background(), file, Position{Line: 0, Character: 0})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("op after close: got %v, want ErrSessionClosed", err)
	}

	select {
	case <-sess.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("backend still running after Close")
	}
}

func TestSession_LastUsedAdvances(t *testing.T) {
	root, file := projectDir(t)

	timeouts := testTimeouts()
	timeouts.Request = 200 * time.Millisecond

	sess, err := OpenSession(root, fakeBackend(t, nil), timeouts, nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer sess.Close()

	before := sess.LastUsed()
	time.Sleep(20 * time.Millisecond)

	// Even a timed-out operation counts as use.
	sess.Definition(context.Background(), file, Position{})

	if !sess.LastUsed().After(before) {
		t.Error("LastUsed did not advance after an operation")
	}
}
