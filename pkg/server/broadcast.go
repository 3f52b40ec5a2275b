package server

import (
	"errors"
	"log/slog"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// ErrUserNotFound is returned when a direct message names a user who is
// not registered at lookup time.
var ErrUserNotFound = errors.New("user not found")

// Broadcaster delivers lines to registered sessions. All delivery takes a
// registry snapshot under the lock and writes outside it, so one slow
// recipient never stalls logins or other deliveries. A recipient that
// disconnects mid-delivery may still get a best-effort write attempt that
// fails silently; its own handler or the idle monitor reaps it.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: metrics}
}

// Broadcast sends "MSG <sender> <text>" to every registered session except
// the sender's own. A failed write to one recipient is logged and skipped;
// delivery to the rest continues.
func (b *Broadcaster) Broadcast(sender, text string) {
	line := protocol.FormatBroadcast(sender, text)
	for _, sess := range b.registry.Snapshot() {
		if sess.Username == sender {
			continue
		}
		if err := sess.WriteLine(line); err != nil {
			b.metrics.DeliveryFailures.Add(1)
			slog.Warn("broadcast write failed", "recipient", sess.Username, "err", err)
		}
	}
	b.metrics.MessagesBroadcast.Add(1)
}

// DirectMessage sends "DM <sender> <text>" to target only. Returns
// ErrUserNotFound if target is absent from the registry at lookup time. A
// target that disconnects between lookup and write counts as a successful
// best-effort send: the send committed to a registry snapshot, and the
// dead connection is reaped elsewhere.
func (b *Broadcaster) DirectMessage(sender, target, text string) error {
	sess, ok := b.registry.Lookup(target)
	if !ok {
		return ErrUserNotFound
	}
	if err := sess.WriteLine(protocol.FormatDirect(sender, text)); err != nil {
		b.metrics.DeliveryFailures.Add(1)
		slog.Warn("direct message write failed", "from", sender, "to", target, "err", err)
		return nil
	}
	b.metrics.DirectMessages.Add(1)
	return nil
}

// NotifyAll sends "INFO <text>" to every registered session except the one
// named by exclude (empty excludes no one). Same delivery discipline as
// Broadcast.
func (b *Broadcaster) NotifyAll(exclude, text string) {
	line := protocol.FormatInfo(text)
	for _, sess := range b.registry.Snapshot() {
		if exclude != "" && sess.Username == exclude {
			continue
		}
		if err := sess.WriteLine(line); err != nil {
			b.metrics.DeliveryFailures.Add(1)
			slog.Warn("notify write failed", "recipient", sess.Username, "err", err)
		}
	}
}

// Notify sends "INFO <text>" to exactly one registered session.
func (b *Broadcaster) Notify(username, text string) error {
	sess, ok := b.registry.Lookup(username)
	if !ok {
		return ErrUserNotFound
	}
	return sess.WriteLine(protocol.FormatInfo(text))
}
