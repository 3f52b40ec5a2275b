package server

import (
	"log/slog"
	"time"

	"github.com/NicolasHaas/linechat/pkg/model"
	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// StartIdleMonitor launches the background loop that evicts sessions whose
// last activity is older than the idle timeout. It stops when the server
// context is cancelled.
func (s *Server) StartIdleMonitor() {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

// sweep scans one registry snapshot and evicts every session idle past the
// threshold. The handler may be tearing the same session down concurrently;
// claiming the registry entry first decides who announces, and closing an
// already-closed connection is a no-op.
func (s *Server) sweep(now time.Time) {
	for _, sess := range s.registry.Snapshot() {
		if sess.IdleFor(now) <= s.cfg.IdleTimeout {
			continue
		}
		if !s.registry.Unregister(sess.Username) {
			continue // handler teardown got here first
		}

		// Best effort: the peer may already be gone.
		if err := sess.WriteLine(protocol.FormatInfo(protocol.InfoIdleTimeout)); err != nil {
			slog.Debug("idle notice write failed", "user", sess.Username, "err", err)
		}
		_ = sess.Close()

		s.metrics.IdleEvictions.Add(1)
		s.metrics.TotalDisconnects.Add(1)
		s.recordEvent(model.EventIdleTimeout, sess, "")
		s.broadcast.NotifyAll("", sess.Username+" disconnected")
		slog.Info("session evicted for inactivity",
			"user", sess.Username, "session", sess.ID, "idle", sess.IdleFor(now).Truncate(time.Second))
	}
}
