package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// Server is the local observability dashboard: an HTTP API over the record
// store plus a websocket feed of live executions. It binds to loopback and
// carries no authentication; it must never be exposed beyond the machine.
type Server struct {
	store *Store
	hub   *Hub
	log   *logging.AppLogger

	httpSrv *http.Server
}

// NewServer wires the dashboard server. gin runs in release mode; the
// default mode writes its banner to stdout, which belongs to the MCP
// transport.
func NewServer(store *Store, hub *Hub, log *logging.AppLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{store: store, hub: hub, log: log}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/logs", s.handleLogs)
	router.GET("/api/stats", s.handleStats)
	router.GET("/ws", func(c *gin.Context) {
		hub.serve(c.Writer, c.Request)
	})

	s.httpSrv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving on addr. It blocks until Shutdown or a listener
// error.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	if s.log != nil {
		s.log.Info("dashboard listening", "addr", addr)
	}
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-1000"})
			return
		}
		limit = n
	}

	records, err := s.store.Recent(limit)
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to read records", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": records})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to aggregate stats", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store read failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
