// CLAUDE:SUMMARY HTTP server lifecycle: listen, serve, graceful shutdown when the context ends.
// Package chassis runs an http.Handler with the timeouts and shutdown
// sequence every taxonav listener uses.
package chassis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Config configures a Server.
type Config struct {
	Addr    string
	Handler http.Handler
	// ShutdownTimeout bounds the drain of in-flight requests. Default: 10s.
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server wraps http.Server.
type Server struct {
	srv     *http.Server
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Server. Handler is required.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("chassis: handler is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		timeout: cfg.ShutdownTimeout,
		logger:  cfg.Logger,
	}, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("chassis: listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		errc <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("chassis: shutdown: %w", err)
	}
	<-errc
	s.logger.Info("server stopped")
	return nil
}
