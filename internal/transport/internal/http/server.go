// Package http provides HTTP server implementation for the transport layer.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jamesprial/mcp-tool-gateway/internal/config"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no deadline.
const DefaultShutdownTimeout = 30 * time.Second

// server implements transportcore.Server using net/http.Server.
type server struct {
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	closed   bool
}

// NewServer creates a new HTTP server with the provided configuration and router.
// Server-level errors (TLS handshakes, malformed requests) go to logger.
func NewServer(cfg *config.Config, router transportcore.Router, logger *slog.Logger) transportcore.Server {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if router == nil {
		panic("router cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// Start begins serving HTTP requests on the configured address.
// This is a blocking call that returns nil after a graceful Shutdown.
func (s *server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transportcore.ErrServerClosed
	}
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("http server listening", slog.String("addr", listener.Addr().String()))

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server without interrupting active connections.
// In-flight tool calls finish or hit their own timeouts before the deadline.
func (s *server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transportcore.ErrServerClosed
	}
	s.closed = true
	s.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// Addr returns the address the server is listening on.
// Before Start it returns the configured address.
func (s *server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}
