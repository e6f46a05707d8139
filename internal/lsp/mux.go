package lsp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// NotificationHandler handles server-initiated notifications.
type NotificationHandler func(method string, params json.RawMessage)

// Mux correlates outgoing requests with asynchronous inbound responses over
// one session's transport. Ids are monotonically increasing and never reused
// within a session's lifetime. Each pending request resolves exactly once:
// response arrival, timeout, and transport failure race, first one wins and
// the rest are no-ops.
type Mux struct {
	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]*PendingSlot
	handlers map[string]NotificationHandler
	failed   error

	// reply answers server-initiated requests so the backend never stalls
	// waiting on us.
	reply func(Response) error

	log *logging.AppLogger
}

// outcome is the terminal state of a pending request.
type outcome struct {
	result json.RawMessage
	err    error
}

// PendingSlot is a single-resolution completion handle for one request.
type PendingSlot struct {
	id     int64
	method string
	ch     chan outcome
}

// NewMux creates a multiplexer. reply is invoked for server-initiated
// requests that require an answer; it may be nil in tests.
func NewMux(reply func(Response) error, log *logging.AppLogger) *Mux {
	return &Mux{
		pending:  make(map[int64]*PendingSlot),
		handlers: make(map[string]NotificationHandler),
		reply:    reply,
		log:      log,
	}
}

// NextID returns a fresh correlation id, starting at 1.
func (m *Mux) NextID() int64 {
	return m.nextID.Add(1)
}

// Register records a waiting slot for id before the request is sent, so a
// response arriving immediately after the write cannot be lost. If the mux
// has already failed (transport death) the slot is pre-resolved with that
// error.
func (m *Mux) Register(id int64, method string) *PendingSlot {
	slot := &PendingSlot{
		id:     id,
		method: method,
		ch:     make(chan outcome, 1),
	}

	m.mu.Lock()
	if m.failed != nil {
		failedErr := m.failed
		m.mu.Unlock()
		slot.ch <- outcome{err: failedErr}
		return slot
	}
	m.pending[id] = slot
	m.mu.Unlock()

	return slot
}

// Resolve wakes the waiter for id with the response payload. Resolving an
// unknown or already-resolved id is logged and dropped, never fatal: the
// backend may emit spurious or duplicate responses.
func (m *Mux) Resolve(id int64, result json.RawMessage) {
	m.deliver(id, outcome{result: result})
}

// Fail wakes the waiter for id with an error (timeout or transport failure).
func (m *Mux) Fail(id int64, err error) {
	m.deliver(id, outcome{err: err})
}

func (m *Mux) deliver(id int64, out outcome) {
	m.mu.Lock()
	slot, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		if m.log != nil {
			m.log.Debug("dropping resolution for unknown request id", "id", id)
		}
		return
	}
	slot.ch <- out
}

// FailAll resolves every pending request with err and poisons the mux so
// later Registers fail immediately. Used when the backend disconnects.
func (m *Mux) FailAll(err error) {
	m.mu.Lock()
	slots := make([]*PendingSlot, 0, len(m.pending))
	for _, s := range m.pending {
		slots = append(slots, s)
	}
	m.pending = make(map[int64]*PendingSlot)
	if m.failed == nil {
		m.failed = err
	}
	m.mu.Unlock()

	for _, s := range slots {
		s.ch <- outcome{err: err}
	}
}

// PendingCount returns the number of outstanding requests.
func (m *Mux) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// OnNotification registers a handler for a server notification method.
// "*" acts as a wildcard sink for unhandled methods.
func (m *Mux) OnNotification(method string, handler NotificationHandler) {
	m.mu.Lock()
	m.handlers[method] = handler
	m.mu.Unlock()
}

// Wait blocks until the slot resolves or ctx expires. On expiry the slot is
// failed with ErrRequestTimeout; if a response won the race the response is
// returned instead. Exactly one terminal state is ever observed.
func (s *PendingSlot) Wait(ctx context.Context, m *Mux) (json.RawMessage, error) {
	select {
	case out := <-s.ch:
		return out.result, out.err
	case <-ctx.Done():
		m.Fail(s.id, ErrRequestTimeout)
		// A value is now guaranteed: either our Fail landed or a
		// concurrent Resolve/FailAll beat it.
		out := <-s.ch
		return out.result, out.err
	}
}

// inboundProbe is the minimal shape needed to classify an inbound message.
// The id stays raw JSON: our own request ids are always numeric, but a
// server-initiated request may carry a string id and must still be answered.
type inboundProbe struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params json.RawMessage `json:"params"`
}

// hasID reports whether the probe carries a usable id value.
func (p *inboundProbe) hasID() bool {
	return len(p.ID) > 0 && string(p.ID) != "null"
}

// DispatchInbound classifies one decoded inbound message and routes it:
// responses resolve their pending slot, notifications go to the sink, and
// server-initiated requests get a generic empty reply so the backend is
// never left waiting. Unparseable messages are logged and dropped.
func (m *Mux) DispatchInbound(data json.RawMessage) {
	var probe inboundProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		if m.log != nil {
			m.log.Warn("dropping unparseable inbound message", "error", err)
		}
		return
	}

	switch {
	case probe.hasID() && probe.Method == "":
		// Response to one of our requests; those ids are always numeric.
		var id int64
		if err := json.Unmarshal(probe.ID, &id); err != nil {
			if m.log != nil {
				m.log.Debug("dropping response with non-numeric id", "id", string(probe.ID))
			}
			return
		}
		if probe.Error != nil {
			m.Fail(id, probe.Error)
			return
		}
		m.Resolve(id, probe.Result)

	case probe.hasID() && probe.Method != "":
		// Server-initiated request. We implement none of them; answer
		// with a null result to keep the backend unblocked. The id is
		// echoed verbatim, numeric or string.
		if m.log != nil {
			m.log.Debug("answering server request with empty result", "method", probe.Method)
		}
		if m.reply != nil {
			if err := m.reply(Response{JSONRPC: "2.0", ID: probe.ID, Result: nil}); err != nil && m.log != nil {
				m.log.Warn("failed to answer server request", "method", probe.Method, "error", err)
			}
		}

	case probe.Method != "":
		m.dispatchNotification(probe.Method, probe.Params)

	default:
		if m.log != nil {
			m.log.Debug("dropping inbound message with no id or method")
		}
	}
}

// dispatchNotification routes a notification to its handler. Handlers run in
// their own goroutine so a slow sink never blocks the inbound reader or any
// pending request.
func (m *Mux) dispatchNotification(method string, params json.RawMessage) {
	m.mu.Lock()
	handler, ok := m.handlers[method]
	if !ok {
		handler, ok = m.handlers["*"]
	}
	m.mu.Unlock()

	if ok && handler != nil {
		go handler(method, params)
	}
}
