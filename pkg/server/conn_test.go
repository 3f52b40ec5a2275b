package server

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NicolasHaas/linechat/pkg/store"
)

// fakeConn is a net.Conn double that records everything written to it.
// Reads end immediately so handler loops fall through to teardown.
type fakeConn struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writeErr error
	closed   int
}

func (c *fakeConn) Read(_ []byte) (int, error) { return 0, io.EOF }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.buf.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr                { return &net.IPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr               { return &net.IPAddr{} }
func (c *fakeConn) SetDeadline(_ time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(_ time.Time) error { return nil }

// Lines returns the complete lines written so far.
func (c *fakeConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// CloseCount reports how many times Close was called.
func (c *fakeConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	return New(cfg, Dependencies{Audit: store.NewMemory()})
}

// loginUser registers a fake-conn session under the given name.
func loginUser(t *testing.T, s *Server, name string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := NewSession(conn)
	s.handleLine(sess, "LOGIN "+name)
	lines := conn.Lines()
	if len(lines) == 0 || lines[len(lines)-1] != "OK" {
		t.Fatalf("login %q: got %q, want trailing OK", name, lines)
	}
	conn.mu.Lock()
	conn.buf.Reset()
	conn.mu.Unlock()
	return sess, conn
}
