package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until a shutdown signal arrives.
func (s *Server) Run() error {
	if s.audit != nil {
		defer func() { _ = s.audit.Close() }()
	}

	if err := s.Start(); err != nil {
		return err
	}
	s.StartIdleMonitor()
	s.StartMetricsHTTP()

	// Periodic metrics summary (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	slog.Info("linechat server running",
		"listen", s.cfg.ListenAddr,
		"idle_timeout", s.cfg.IdleTimeout,
		"sweep_interval", s.cfg.SweepInterval,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops accepting connections, halts the idle monitor, and closes
// every live session. Per-connection handlers observe the closed sockets
// and run their own teardown.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for _, sess := range s.registry.Snapshot() {
		_ = sess.Close()
	}
	slog.Info("server stopped")
}
