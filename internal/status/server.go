// Package status exposes a small read-only HTTP API for operators: a liveness
// probe, pipeline counters, the active toggles and the source directory.
package status

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/monitor"
	"github.com/rewired-gh/ca-monitor/internal/storage"
)

// Pipeline is the part of monitor.Service the endpoints read
type Pipeline interface {
	Stats() monitor.Stats
	Settings() *monitor.Settings
}

// SourceLister lists known sources
type SourceLister interface {
	GetAllSources() []storage.Source
}

type statsResponse struct {
	monitor.Stats
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// NewRouter builds the gin engine. sources and accessLog may be nil.
func NewRouter(pipeline Pipeline, sources SourceLister, accessLog io.Writer) *gin.Engine {
	router := gin.New()
	if accessLog != nil {
		router.Use(AccessLog(accessLog, "/healthz"))
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		stats := pipeline.Stats()
		c.JSON(http.StatusOK, statsResponse{Stats: stats, UptimeSeconds: int64(stats.Uptime / time.Second)})
	})

	router.GET("/toggles", func(c *gin.Context) {
		c.JSON(http.StatusOK, pipeline.Settings().Toggles)
	})

	router.GET("/sources", func(c *gin.Context) {
		if sources == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "source directory disabled"})
			return
		}
		c.JSON(http.StatusOK, sources.GetAllSources())
	})

	return router
}

// Server wraps the HTTP server lifecycle
type Server struct {
	srv *http.Server
}

// NewServer creates a status server listening on addr
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
	}
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		logger.Info("Status server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
