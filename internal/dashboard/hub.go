package dashboard

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/swiftlens/swiftlens/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard binds to loopback only; browsers hitting it locally
	// may present any Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans execution records out to connected dashboard browsers. A slow or
// dead client is dropped, never waited on.
type Hub struct {
	log *logging.AppLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan ExecutionRecord
}

// NewHub creates an empty hub.
func NewHub(log *logging.AppLogger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]chan ExecutionRecord),
	}
}

// Broadcast queues a record for every connected client.
func (h *Hub) Broadcast(r ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- r:
		default:
			// Client is not keeping up; drop it.
			delete(h.clients, conn)
			close(ch)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve upgrades an HTTP request and pumps records to the client until it
// disconnects.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	ch := make(chan ExecutionRecord, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	if h.log != nil {
		h.log.Debug("dashboard client connected", "remote", conn.RemoteAddr())
	}

	// Reader goroutine: we expect no client messages, but reading is what
	// detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()

	for rec := range ch {
		if err := conn.WriteJSON(rec); err != nil {
			h.drop(conn)
			return
		}
	}
	conn.Close()
}

// drop removes a client and closes its connection.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for conn, ch := range h.clients {
		delete(h.clients, conn)
		close(ch)
		conn.Close()
	}
	h.mu.Unlock()
}
