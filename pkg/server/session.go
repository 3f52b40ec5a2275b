package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state for one connection. The connection is
// owned exclusively by the session: the handler goroutine reads from it,
// and any goroutine may write to it through WriteLine, which serializes
// writers so concurrently delivered lines never interleave on the wire.
type Session struct {
	// ID identifies the connection in logs and the audit trail,
	// independent of whether a login ever succeeds.
	ID string

	// Username is set exactly once, by Registry.TryRegister under the
	// registry lock, and never changes afterwards. Empty means the
	// connection has not authenticated.
	Username string

	conn         net.Conn
	writeMu      sync.Mutex
	lastActivity atomic.Int64 // unix nanoseconds
	closeOnce    sync.Once
	closeErr     error

	// seq orders sessions by registration; assigned by the registry.
	seq uint64
}

// NewSession wraps an accepted connection. Last activity starts at now so
// a client that never sends anything is still subject to idle eviction.
func NewSession(conn net.Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		conn: conn,
	}
	s.Touch()
	return s
}

// WriteLine writes one protocol line plus the trailing delimiter under the
// session's write guard.
func (s *Session) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(append([]byte(line), '\n'))
	return err
}

// Touch records client activity now.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last successfully processed input.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// IdleFor returns how long the session has been idle as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity())
}

// Close closes the underlying connection. Safe to call from multiple
// goroutines; only the first call closes, the rest observe its result. A
// close unblocks the handler's pending read so teardown can run.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// RemoteAddr reports the peer address for logging.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
