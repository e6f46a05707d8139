package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// SessionState is the lifecycle state of a session.
type SessionState int32

const (
	// StateUninitialized is the state before the process has started.
	StateUninitialized SessionState = iota
	// StateInitializing means the process is up and the handshake is in flight.
	StateInitializing
	// StateReady means the handshake completed and operations are accepted.
	StateReady
	// StateDegraded means the backend died or the channel broke; the session
	// answers nothing and waits for eviction.
	StateDegraded
	// StateClosed means Close ran. Closed sessions are replaced, never revived.
	StateClosed
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Timeouts carries the deadline policy for a session. The handshake deadline
// is deliberately generous: sourcekit-lsp may index a cold project on first
// load. Steady-state requests use the shorter Request deadline.
type Timeouts struct {
	Handshake time.Duration
	Request   time.Duration
	Terminate time.Duration
}

// DefaultTimeouts returns the standard timeout policy.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake: 30 * time.Second,
		Request:   15 * time.Second,
		Terminate: 5 * time.Second,
	}
}

// Session owns one sourcekit-lsp process, one transport, and one mux for
// exactly one project root. It performs the initialize handshake once and
// exposes the typed operations the tool layer consumes. Callers hold only a
// borrowed reference for the duration of one operation; the registry owns
// the session.
type Session struct {
	root     string
	timeouts Timeouts
	log      *logging.AppLogger

	proc      *Process
	transport *Transport
	mux       *Mux

	state atomic.Int32

	capabilities ServerCapabilities
	serverInfo   *ServerInfo

	// Open documents, tracked so repeat operations on the same file skip
	// the didOpen round and edits can bump versions.
	docMu sync.Mutex
	docs  map[DocumentURI]int // uri -> version

	// Diagnostics arrive as unsolicited publishDiagnostics notifications.
	// The latest set per document is cached; diagSeen channels close on the
	// first publish so waiters know the server has spoken at all.
	diagMu   sync.Mutex
	diags    map[DocumentURI][]Diagnostic
	diagSeen map[DocumentURI]chan struct{}

	lastUsedMu sync.Mutex
	lastUsed   time.Time

	fatalOnce sync.Once
	closeOnce sync.Once

	// onFatal is the registry eviction hook. Installed after OpenSession
	// returns, so the watcher may race the installation; the mutex keeps
	// both sides honest.
	onFatalMu sync.Mutex
	onFatal   func(root string)

	readerDone chan struct{}
}

// OpenSession starts a backend process for root, performs the
// initialize/initialized handshake, and returns a ready session. On any
// failure everything already acquired is released before returning.
func OpenSession(root string, cfg ProcessConfig, timeouts Timeouts, log *logging.AppLogger) (*Session, error) {
	proc, err := StartProcess(cfg, root)
	if err != nil {
		return nil, &SessionError{Root: root, Err: err}
	}

	transport := NewTransport(proc.Stdout(), proc.Stdin(), nil)

	s := &Session{
		root:       root,
		timeouts:   timeouts,
		log:        log,
		proc:       proc,
		transport:  transport,
		docs:       make(map[DocumentURI]int),
		diags:      make(map[DocumentURI][]Diagnostic),
		diagSeen:   make(map[DocumentURI]chan struct{}),
		lastUsed:   time.Now(),
		readerDone: make(chan struct{}),
	}
	s.mux = NewMux(func(resp Response) error { return transport.WriteMessage(resp) }, log)
	s.mux.OnNotification("textDocument/publishDiagnostics", s.onPublishDiagnostics)
	s.state.Store(int32(StateInitializing))

	go s.readLoop()
	go s.watchProcess()

	if err := s.initialize(); err != nil {
		// Handshake never completed; kill directly rather than shutdown/exit.
		s.teardown(false)
		return nil, &SessionError{Root: root, Err: err}
	}

	s.state.Store(int32(StateReady))
	if log != nil {
		name, version := "", ""
		if s.serverInfo != nil {
			name, version = s.serverInfo.Name, s.serverInfo.Version
		}
		log.Debug("session ready", "root", root, "pid", proc.PID(), "server", name, "version", version)
	}
	return s, nil
}

// Root returns the project root this session serves.
func (s *Session) Root() string { return s.root }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// PID returns the backend process id.
func (s *Session) PID() int { return s.proc.PID() }

// Capabilities returns the capabilities the server reported at initialize.
func (s *Session) Capabilities() ServerCapabilities { return s.capabilities }

// ServerInfo returns the server's self-identification, if it sent one.
func (s *Session) ServerInfo() *ServerInfo { return s.serverInfo }

// LastUsed returns when the session last served an operation.
func (s *Session) LastUsed() time.Time {
	s.lastUsedMu.Lock()
	defer s.lastUsedMu.Unlock()
	return s.lastUsed
}

func (s *Session) touchLastUsed() {
	s.lastUsedMu.Lock()
	s.lastUsed = time.Now()
	s.lastUsedMu.Unlock()
}

// setOnFatal installs the registry's eviction hook. If the backend already
// died before installation, the hook fires immediately so the eviction is
// never lost to that window.
func (s *Session) setOnFatal(fn func(root string)) {
	s.onFatalMu.Lock()
	s.onFatal = fn
	s.onFatalMu.Unlock()

	if fn != nil && s.State() == StateDegraded {
		go fn(s.root)
	}
}

// readLoop is the dedicated inbound-reader task. It never blocks on any
// individual caller: the mux hands payloads to buffered single-resolution
// slots and runs notification handlers on their own goroutines.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		msg, err := s.transport.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrFraming) && s.log != nil {
				s.log.Error("fatal framing error on session channel", "root", s.root, "error", err)
			}
			s.fatal()
			return
		}
		s.mux.DispatchInbound(msg)
	}
}

// watchProcess fails all pending requests the moment the backend exits, even
// if the read loop is still draining buffered output.
func (s *Session) watchProcess() {
	<-s.proc.Done()
	s.fatal()
}

// fatal transitions the session to degraded and wakes every pending request
// with ErrBackendDisconnected. Idempotent; a no-op after a clean Close.
func (s *Session) fatal() {
	s.fatalOnce.Do(func() {
		wasClosed := s.State() == StateClosed
		if !wasClosed {
			s.state.Store(int32(StateDegraded))
		}
		s.mux.FailAll(ErrBackendDisconnected)
		if !wasClosed {
			if s.log != nil {
				s.log.Warn("backend disconnected", "root", s.root, "exit", s.proc.ExitErr())
			}
			s.onFatalMu.Lock()
			fn := s.onFatal
			s.onFatalMu.Unlock()
			if fn != nil {
				go fn(s.root)
			}
		}
	})
}

// initialize performs the initialize request and initialized notification
// under the handshake deadline.
func (s *Session) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Handshake)
	defer cancel()

	params := InitializeParams{
		ProcessID:    os.Getpid(),
		RootURI:      FilePathToURI(s.root),
		RootPath:     s.root,
		Capabilities: DefaultClientCapabilities(),
		WorkspaceFolders: []WorkspaceFolder{
			{URI: FilePathToURI(s.root), Name: filepath.Base(s.root)},
		},
	}

	raw, err := s.roundTrip(ctx, "initialize", params)
	if err != nil {
		if errors.Is(err, ErrRequestTimeout) {
			return ErrHandshakeTimeout
		}
		return fmt.Errorf("initialize: %w", err)
	}

	var result InitializeResult
	if err := unmarshalResult(raw, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	s.capabilities = result.Capabilities
	s.serverInfo = result.ServerInfo

	if err := s.notify("initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// roundTrip registers a pending slot, sends the request, and waits for the
// matching response or the context deadline. Registration happens before the
// write so an instant response cannot race past its waiter.
func (s *Session) roundTrip(ctx context.Context, method string, params any) (raw []byte, err error) {
	id := s.mux.NextID()
	slot := s.mux.Register(id, method)

	req := Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := s.transport.WriteMessage(req); err != nil {
		s.mux.Fail(id, ErrBackendDisconnected)
		<-slot.ch
		return nil, ErrBackendDisconnected
	}

	return slot.Wait(ctx, s.mux)
}

// notify sends a notification; no response is expected.
func (s *Session) notify(method string, params any) error {
	req := Request{JSONRPC: "2.0", Method: method, Params: params}
	if err := s.transport.WriteMessage(req); err != nil {
		return ErrBackendDisconnected
	}
	return nil
}

// checkReady gates typed operations on the lifecycle state.
func (s *Session) checkReady() error {
	switch s.State() {
	case StateReady:
		return nil
	case StateUninitialized, StateInitializing:
		return ErrHandshakeNotComplete
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrBackendDisconnected
	}
}

// call is the typed-operation core: ready check, per-operation deadline,
// round trip, last-used bookkeeping.
func (s *Session) call(ctx context.Context, method string, params any) ([]byte, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Request)
	defer cancel()

	raw, err := s.roundTrip(ctx, method, params)
	s.touchLastUsed()
	return raw, err
}

// unmarshalResult decodes a response payload, mapping decode failures to
// ErrInvalidResponse.
func unmarshalResult(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: empty result", ErrInvalidResponse)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// EnsureOpen sends textDocument/didOpen for file if this session has not
// already opened it. The file content is read from disk; callers guarantee
// the path is validated and in-tree.
func (s *Session) EnsureOpen(file string) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	uri := FilePathToURI(file)

	s.docMu.Lock()
	if _, open := s.docs[uri]; open {
		s.docMu.Unlock()
		return nil
	}
	s.docs[uri] = 1
	s.docMu.Unlock()

	content, err := os.ReadFile(file)
	if err != nil {
		s.docMu.Lock()
		delete(s.docs, uri)
		s.docMu.Unlock()
		return fmt.Errorf("read %s: %w", file, err)
	}

	return s.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: "swift",
			Version:    1,
			Text:       string(content),
		},
	})
}

// onPublishDiagnostics caches the latest diagnostics for a document and
// signals any waiter blocked on the first publish.
func (s *Session) onPublishDiagnostics(method string, params json.RawMessage) {
	var p PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		if s.log != nil {
			s.log.Warn("malformed publishDiagnostics notification", "root", s.root, "error", err)
		}
		return
	}

	s.diagMu.Lock()
	s.diags[p.URI] = p.Diagnostics
	ch := s.diagSeenLocked(p.URI)
	select {
	case <-ch:
	default:
		close(ch)
	}
	s.diagMu.Unlock()
}

// diagSeenLocked returns the first-publish signal channel for uri. Caller
// holds diagMu.
func (s *Session) diagSeenLocked(uri DocumentURI) chan struct{} {
	ch, ok := s.diagSeen[uri]
	if !ok {
		ch = make(chan struct{})
		s.diagSeen[uri] = ch
	}
	return ch
}

// Diagnostics returns the server's current diagnostics for file. The
// document is opened if needed; if nothing has been published for it yet,
// the call waits up to wait for the first publish and then returns whatever
// is cached. A clean file may legitimately produce an empty set.
func (s *Session) Diagnostics(ctx context.Context, file string, wait time.Duration) ([]Diagnostic, error) {
	if err := s.EnsureOpen(file); err != nil {
		return nil, err
	}
	uri := FilePathToURI(file)

	s.diagMu.Lock()
	ch := s.diagSeenLocked(uri)
	s.diagMu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.readerDone:
		return nil, ErrBackendDisconnected
	}

	s.diagMu.Lock()
	diags := append([]Diagnostic(nil), s.diags[uri]...)
	s.diagMu.Unlock()

	s.touchLastUsed()
	return diags, nil
}

// CloseDocument sends textDocument/didClose for file if it is open.
func (s *Session) CloseDocument(file string) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	uri := FilePathToURI(file)

	s.docMu.Lock()
	_, open := s.docs[uri]
	delete(s.docs, uri)
	s.docMu.Unlock()

	if !open {
		return nil
	}
	return s.notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// Hover returns hover text for the symbol at pos. A position with no symbol
// yields ErrInvalidResponse rather than an empty success.
func (s *Session) Hover(ctx context.Context, file string, pos Position) (string, error) {
	if err := s.EnsureOpen(file); err != nil {
		return "", err
	}

	params := HoverParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(file)},
		Position:     pos,
	}}

	raw, err := s.call(ctx, "textDocument/hover", params)
	if err != nil {
		return "", err
	}

	var hover Hover
	if err := unmarshalResult(raw, &hover); err != nil {
		return "", fmt.Errorf("no hover information at %d:%d: %w", pos.Line, pos.Character, ErrInvalidResponse)
	}
	text := HoverText(hover.Contents)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no hover information at %d:%d: %w", pos.Line, pos.Character, ErrInvalidResponse)
	}
	return text, nil
}

// Definition returns the definition locations for the symbol at pos.
// Cross-file results require the project's index store; without it the
// backend simply reports fewer (or zero) locations.
func (s *Session) Definition(ctx context.Context, file string, pos Position) ([]Location, error) {
	if err := s.EnsureOpen(file); err != nil {
		return nil, err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(file)},
		Position:     pos,
	}

	raw, err := s.call(ctx, "textDocument/definition", params)
	if err != nil {
		return nil, err
	}
	return ParseLocationResult(raw)
}

// References returns every reference to the symbol at pos. Same index-store
// caveat as Definition; an empty result set is surfaced as-is and the tool
// layer decides whether to suggest an index rebuild.
func (s *Session) References(ctx context.Context, file string, pos Position, includeDecl bool) ([]Location, error) {
	if err := s.EnsureOpen(file); err != nil {
		return nil, err
	}

	params := ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FilePathToURI(file)},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDecl},
	}

	raw, err := s.call(ctx, "textDocument/references", params)
	if err != nil {
		return nil, err
	}
	return ParseLocationResult(raw)
}

// DocumentSymbols returns the symbol tree of file.
func (s *Session) DocumentSymbols(ctx context.Context, file string) ([]DocumentSymbol, error) {
	if err := s.EnsureOpen(file); err != nil {
		return nil, err
	}

	params := DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(file)},
	}

	raw, err := s.call(ctx, "textDocument/documentSymbol", params)
	if err != nil {
		return nil, err
	}
	return ParseSymbolResult(raw)
}

// ApplyEdit replaces rng in file with newText, writes the file atomically,
// and synchronizes the open document with the backend via didChange.
// It returns the number of lines removed and added.
func (s *Session) ApplyEdit(ctx context.Context, file string, rng Range, newText string) (removed, added int, err error) {
	if err := s.EnsureOpen(file); err != nil {
		return 0, 0, err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", file, err)
	}

	updated, removed, added, err := applyRangeEdit(string(content), rng, newText)
	if err != nil {
		return 0, 0, err
	}

	if err := writeFileAtomic(file, []byte(updated)); err != nil {
		return 0, 0, err
	}

	uri := FilePathToURI(file)
	s.docMu.Lock()
	s.docs[uri]++
	version := s.docs[uri]
	s.docMu.Unlock()

	err = s.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []ContentChangeEvent{{Text: updated}},
	})
	if err != nil {
		return removed, added, err
	}

	s.touchLastUsed()
	return removed, added, nil
}

// Close shuts the session down. If the handshake completed it sends the
// protocol shutdown/exit pair first; otherwise it kills directly. The
// process, transport, and every pending request are released on every exit
// path. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		graceful := s.State() == StateReady
		s.state.Store(int32(StateClosed))
		s.teardown(graceful)
	})
}

// teardown is the single release path shared by Close and failed opens.
func (s *Session) teardown(graceful bool) {
	if graceful && s.proc.IsAlive() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Terminate)
		_, _ = s.roundTrip(ctx, "shutdown", nil)
		cancel()
		_ = s.notify("exit", nil)
	}

	s.mux.FailAll(ErrBackendDisconnected)
	s.transport.Close()
	s.proc.Terminate(s.timeouts.Terminate)
}
