// Package server implements the linechat server: a shared registry of
// logged-in users, a per-connection command loop, a broadcast engine, and
// an idle-eviction supervisor.
package server

import (
	"context"
	"net"
	"time"

	"github.com/NicolasHaas/linechat/pkg/store"
)

// Config holds server configuration.
type Config struct {
	ListenAddr    string        // TCP bind address (e.g. ":4000")
	IdleTimeout   time.Duration // evict sessions idle longer than this
	SweepInterval time.Duration // how often the idle monitor scans the registry
	MetricsAddr   string        // HTTP bind address for /metrics endpoint (empty = disabled)
	AuditDB       string        // SQLite audit trail path (empty = disabled)
	LogLevel      string        // slog level name
	LogFormat     string        // "text" or "json"
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Audit and will Close() it on shutdown.
type Dependencies struct {
	Audit store.EventStore // nil disables the audit trail
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":4000",
		IdleTimeout:   60 * time.Second,
		SweepInterval: 10 * time.Second,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Server is the linechat chat server.
type Server struct {
	cfg       Config
	registry  *Registry
	broadcast *Broadcaster
	metrics   *Metrics
	audit     store.EventStore
	ln        net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	metrics := NewMetrics()
	return &Server{
		cfg:       cfg,
		registry:  registry,
		broadcast: NewBroadcaster(registry, metrics),
		metrics:   metrics,
		audit:     deps.Audit,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Broadcaster returns the broadcast engine.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcast
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
