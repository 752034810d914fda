// Package server mounts the loopback HTTP surface: the websocket IPC
// endpoint, health, metrics and read-only diagnostic mirrors.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/session"
	"github.com/pipcast/backend/internal/version"
	"github.com/pipcast/backend/internal/ws"
)

// Config contains server configuration.
type Config struct {
	Host string
	Port string
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg      Config
	router   *gin.Engine
	srv      *http.Server
	log      *logging.Logger
	metrics  *monitoring.Metrics
	registry *session.Registry
	prefs    *prefs.Store
}

// New creates the server and registers all routes.
func New(cfg Config, wsHandler *ws.Handler, registry *session.Registry, store *prefs.Store, metrics *monitoring.Metrics, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		cfg:      cfg,
		router:   router,
		log:      log,
		metrics:  metrics,
		registry: registry,
		prefs:    store,
	}

	router.GET("/health", s.health)
	router.GET("/metrics", s.handleMetrics())
	router.GET("/roster", s.roster)
	router.GET("/sessions", s.sessions)
	router.GET("/stream", wsHandler.HandleConnection)

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("ipc server listening", zap.String("addr", addr))

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  version.String(),
		"sessions": s.registry.Len(),
	})
}

func (s *Server) handleMetrics() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		if s.metrics != nil {
			s.metrics.UpdateUptime()
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func (s *Server) roster(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"order":         s.prefs.Order(),
		"channelPoints": s.prefs.ChannelPoints(),
	})
}

func (s *Server) sessions(c *gin.Context) {
	open := s.registry.List()
	out := make([]gin.H, 0, len(open))
	for _, sess := range open {
		out = append(out, gin.H{
			"channel":   sess.Channel,
			"session":   sess.ID,
			"createdAt": sess.CreatedAt,
			"companion": sess.HasCompanion(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
