// Package server exposes the artifact store over HTTP. Uploads are
// multipart/form-data bodies decoded as they arrive; the artifact part is
// streamed to the store without buffering the whole request.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// NewLogger returns a JSON logger writing to w at level and installs it as
// the slog default.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// Server serves HTTP on a TCP listener until its context is cancelled.
type Server struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address, e.g. ":8080". Required.
	Address string
	// Handler serves the requests. Required.
	Handler http.Handler
	// ShutdownTimeout bounds the graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration
	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// New creates a server. Call Serve to start accepting connections.
func New(config Config) *Server {
	if config.Address == "" {
		panic("server: Address is required")
	}
	if config.Handler == nil {
		panic("server: Handler is required")
	}
	if config.Logger == nil {
		panic("server: Logger is required")
	}
	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		address:         config.Address,
		handler:         config.Handler,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve accepts connections until ctx is cancelled, then waits up to the
// shutdown timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	// No ReadTimeout or WriteTimeout: artifact bodies are streamed and may
	// legitimately take minutes.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
