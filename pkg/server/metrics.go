package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current open connections (logged in or not)
	LoginsAccepted    atomic.Int64 // successful LOGIN commands
	LoginsRejected    atomic.Int64 // LOGINs rejected (taken or invalid name)
	TotalDisconnects  atomic.Int64 // registered users who left (clean, error, or evicted)
	IdleEvictions     atomic.Int64 // sessions forcibly disconnected for inactivity

	// Traffic counters
	MessagesBroadcast atomic.Int64 // MSG commands fanned out
	DirectMessages    atomic.Int64 // DMs delivered
	DeliveryFailures  atomic.Int64 // per-recipient write failures, skipped not retried
	UnknownCommands   atomic.Int64 // unparseable or unrecognized client lines
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable
// struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	LoginsAccepted    int64 `json:"logins_accepted"`
	LoginsRejected    int64 `json:"logins_rejected"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	IdleEvictions     int64 `json:"idle_evictions"`

	MessagesBroadcast int64 `json:"messages_broadcast"`
	DirectMessages    int64 `json:"direct_messages"`
	DeliveryFailures  int64 `json:"delivery_failures"`
	UnknownCommands   int64 `json:"unknown_commands"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		LoginsAccepted:    m.LoginsAccepted.Load(),
		LoginsRejected:    m.LoginsRejected.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		IdleEvictions:     m.IdleEvictions.Load(),
		MessagesBroadcast: m.MessagesBroadcast.Load(),
		DirectMessages:    m.DirectMessages.Load(),
		DeliveryFailures:  m.DeliveryFailures.Load(),
		UnknownCommands:   m.UnknownCommands.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"broadcasts", s.MessagesBroadcast,
		"dms", s.DirectMessages,
		"idle_evictions", s.IdleEvictions,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
