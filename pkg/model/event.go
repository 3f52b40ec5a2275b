package model

import "time"

// EventType classifies a session lifecycle event in the audit trail.
type EventType string

const (
	EventConnect       EventType = "connect"
	EventLogin         EventType = "login"
	EventLoginRejected EventType = "login_rejected"
	EventDisconnect    EventType = "disconnect"
	EventIdleTimeout   EventType = "idle_timeout"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventConnect, EventLogin, EventLoginRejected, EventDisconnect, EventIdleTimeout:
		return true
	}
	return false
}

// SessionEvent is one entry in the session audit trail. Message bodies are
// never recorded, only lifecycle transitions.
type SessionEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"` // connection UUID assigned at accept time
	Username  string    `json:"username"`   // empty before a successful login
	Type      EventType `json:"type"`
	Detail    string    `json:"detail"` // remote address, rejection reason, etc.
	CreatedAt time.Time `json:"created_at"`
}
