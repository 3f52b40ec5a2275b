package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Disabled unless Config.MetricsAddr is set.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("linechat_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("linechat_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("linechat_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("linechat_users_online", "Currently registered users.", "gauge",
		int64(s.registry.Count()))

	write("linechat_logins_accepted_total", "Successful LOGIN commands.", "counter",
		m.LoginsAccepted.Load())
	write("linechat_logins_rejected_total", "Rejected LOGIN commands.", "counter",
		m.LoginsRejected.Load())
	write("linechat_disconnects_total", "Registered users who left.", "counter",
		m.TotalDisconnects.Load())
	write("linechat_idle_evictions_total", "Sessions evicted for inactivity.", "counter",
		m.IdleEvictions.Load())

	write("linechat_broadcasts_total", "MSG commands fanned out.", "counter",
		m.MessagesBroadcast.Load())
	write("linechat_direct_messages_total", "Direct messages delivered.", "counter",
		m.DirectMessages.Load())
	write("linechat_delivery_failures_total", "Per-recipient write failures.", "counter",
		m.DeliveryFailures.Load())
	write("linechat_unknown_commands_total", "Unparseable or unrecognized client lines.", "counter",
		m.UnknownCommands.Load())
}
