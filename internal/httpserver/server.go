package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/config"
)

const defaultShutdownTimeout = 10 * time.Second

// Server wraps the http.Server with the timeouts from the server config.
type Server struct {
	inner           *http.Server
	shutdownTimeout time.Duration
}

// New constructs a server listening on cfg.Port.
func New(cfg config.ServerConfig, handler http.Handler) *Server {
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdownTimeout: shutdown,
	}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic on the configured address.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Serve accepts connections on ln instead of the configured address.
func (s *Server) Serve(ln net.Listener) error {
	return s.inner.Serve(ln)
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
