// Package httpserver exposes the dashboard over HTTP: a health endpoint, the
// current snapshot, single-metric stats, the WebSocket upgrade path, and the
// Prometheus scrape endpoint.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/pulse/internal/model"
)

// Server provides the HTTP API for querying Pulse analytics.
type Server struct {
	addr      string
	engine    model.SnapshotSource
	hub       http.Handler // nil = WebSocket endpoint disabled
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. The hub may be nil when no
// WebSocket surface is wanted.
func NewServer(addr string, engine model.SnapshotSource, hub http.Handler) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		engine: engine,
		hub:    hub,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.registerRoutes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/dashboard", s.handleDashboard)
	r.GET("/api/metrics/:name", s.handleMetric)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"uptime":           time.Since(s.startTime).String(),
		"events_processed": s.engine.TotalEvents(),
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleMetric(c *gin.Context) {
	name := c.Param("name")
	stats, ok := s.engine.MetricStats(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown metric: " + name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "metric": stats})
}
