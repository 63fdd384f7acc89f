// Package server owns the proxy's HTTP listener lifecycle: binding the
// configured address, serving the front door handler, and shutting down
// gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config holds the listener configuration.
type Config struct {
	// Address is the listen address, e.g. "0.0.0.0:9999".
	Address string

	// Handler is the front door handler.
	Handler http.Handler

	// ReadHeaderTimeout bounds how long a client may take to send request
	// headers. There is deliberately no ReadTimeout or WriteTimeout: a
	// websocket session lives as long as the editor stays connected, and
	// either timeout would sever it mid-session. Liveness of established
	// connections is the bridge's heartbeat's job, not the listener's.
	ReadHeaderTimeout time.Duration

	// IdleTimeout applies to idle keep-alive connections that have not
	// been upgraded.
	IdleTimeout time.Duration

	MaxHeaderBytes int
}

// DefaultConfig returns the proxy's listener defaults for handler.
func DefaultConfig(address string, handler http.Handler) *Config {
	return &Config{
		Address:           address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Server wraps http.Server with the listener it is bound to.
type Server struct {
	httpServer *http.Server
	config     *Config
	listener   net.Listener
}

// New builds a Server from config.
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           config.Handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			IdleTimeout:       config.IdleTimeout,
			MaxHeaderBytes:    config.MaxHeaderBytes,
		},
		config: config,
	}, nil
}

// Start binds the address and serves until Shutdown or Close. It returns
// http.ErrServerClosed after a graceful shutdown, like http.Server does.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	return s.httpServer.Serve(listener)
}

// Shutdown stops accepting new connections and waits for in-flight
// requests, bounded by ctx. Hijacked websocket connections are not waited
// on; each bridge tears its own connection down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Close immediately closes the listener and all connections.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}
