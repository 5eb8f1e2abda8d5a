// Package server exposes a read-only HTTP view of the migration ledger.
//
//	GET /healthz  database reachability
//	GET /status   loaded migrations with their ledger state
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/latter"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/util"
	"github.com/loykin/latter/pkg/status"
)

const shutdownTimeout = 5 * time.Second

// Options configures the status server.
type Options struct {
	Addr string
	// Auth protects /status with HS256 bearer tokens when Secret is set.
	Auth   VerifyConfig
	Logger *common.Logger
}

// Server serves status for one orchestrator. Requests are serialized because
// a Latter holds a single connection and transaction slot.
type Server struct {
	l      *latter.Latter
	addr   string
	engine *gin.Engine
	logger *common.Logger
	mu     sync.Mutex
}

// New builds the gin engine. It does not start listening.
func New(l *latter.Latter, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		l:      l,
		addr:   util.TrimWithDefault(opts.Addr, constants.DefaultServeAddr),
		engine: gin.New(),
		logger: common.OrDefault(opts.Logger).WithComponent("server"),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())

	s.engine.GET("/healthz", s.health)
	guarded := s.engine.Group("/")
	if len(opts.Auth.Secret) > 0 {
		guarded.Use(JWTMiddleware(opts.Auth))
	}
	guarded.GET("/status", s.status)
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr is the listen address.
func (s *Server) Addr() string { return s.addr }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("status server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.l.Initialize(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": s.l.Adapter().Driver()})
}

func (s *Server) status(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := status.FromLatter(c.Request.Context(), s.l)
	if err != nil {
		s.logger.Error("status failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current":    info.Current(),
		"applied":    len(info.Applied()),
		"pending":    len(info.Pending()),
		"migrations": info.Migrations,
		"orphans":    info.Orphans,
		"skipped":    info.Skipped,
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}
