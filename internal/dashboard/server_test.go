package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Store, *Hub) {
	t.Helper()
	store := openTestStore(t)
	hub := NewHub(nil)
	srv := NewServer(store, hub, nil)
	return srv, store, hub
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_Logs(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rec := NewRecord("swift_get_hover_info", "/proj", "/proj/a.swift").Finish("", "")
	require.NoError(t, store.Put(rec))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs?limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Logs []ExecutionRecord `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "swift_get_hover_info", body.Logs[0].ToolName)
}

func TestServer_LogsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, q := range []string{"limit=0", "limit=-1", "limit=50000", "limit=soon"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestServer_Stats(t *testing.T) {
	srv, store, _ := newTestServer(t)

	require.NoError(t, store.Put(NewRecord("swift_build_index", "/proj", "").Finish("build_error", "boom")))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 1, stats.Errors)
}

func TestHub_BroadcastToWebsocketClient(t *testing.T) {
	srv, _, hub := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration races the dial return; wait for the hub to see it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, hub.ClientCount())

	sent := NewRecord("swift_find_symbol_references", "/proj", "/proj/a.swift").Finish("", "")
	hub.Broadcast(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got ExecutionRecord
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestHub_DisconnectedClientRemoved(t *testing.T) {
	srv, _, hub := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder

	rec := r.Begin("swift_get_hover_info", "/proj", "/proj/a.swift")
	r.End(rec, "", "")
}

func TestRecorder_PersistsAndBroadcasts(t *testing.T) {
	store := openTestStore(t)
	hub := NewHub(nil)
	r := NewRecorder(store, hub, nil)

	rec := r.Begin("swift_get_symbols_overview", "/proj", "/proj/a.swift")
	r.End(rec, "", "")

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusSuccess, records[0].Status)
}
