package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/NicolasHaas/linechat/pkg/model"
	"github.com/NicolasHaas/linechat/pkg/store"
)

func TestLoginSuccess(t *testing.T) {
	audit := store.NewMemory()
	s := New(DefaultConfig(), Dependencies{Audit: audit})
	conn := &fakeConn{}
	sess := NewSession(conn)

	s.handleLine(sess, "LOGIN alice")

	lines := conn.Lines()
	if len(lines) != 1 || lines[0] != "OK" {
		t.Fatalf("login reply = %q, want [\"OK\"]", lines)
	}
	if _, ok := s.registry.Lookup("alice"); !ok {
		t.Error("alice not in registry after OK")
	}
	if got := s.metrics.LoginsAccepted.Load(); got != 1 {
		t.Errorf("LoginsAccepted = %d, want 1", got)
	}
	if n, _ := audit.CountByType(model.EventLogin); n != 1 {
		t.Errorf("audit login events = %d, want 1", n)
	}
}

func TestLoginRejections(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"no name", "LOGIN", "ERR invalid-username"},
		{"whitespace only", "LOGIN    ", "ERR invalid-username"},
		{"control character", "LOGIN al\x07ce", "ERR invalid-username"},
		{"taken", "LOGIN taken", "ERR username-taken"},
	}

	s := newTestServer(t)
	loginUser(t, s, "taken")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{}
			s.handleLine(NewSession(conn), tt.line)
			lines := conn.Lines()
			if len(lines) != 1 || lines[0] != tt.want {
				t.Errorf("reply = %q, want [%q]", lines, tt.want)
			}
		})
	}

	if got := s.registry.Count(); got != 1 {
		t.Errorf("registry count = %d after rejected logins, want 1", got)
	}
}

func TestLoginTwiceOnSameConnection(t *testing.T) {
	s := newTestServer(t)
	sess, conn := loginUser(t, s, "alice")

	s.handleLine(sess, "LOGIN alice2")

	lines := conn.Lines()
	if len(lines) != 1 || lines[0] != "ERR already-logged-in" {
		t.Errorf("reply = %q, want [\"ERR already-logged-in\"]", lines)
	}
	if _, ok := s.registry.Lookup("alice2"); ok {
		t.Error("second name registered despite rejection")
	}
	if _, ok := s.registry.Lookup("alice"); !ok {
		t.Error("original registration lost")
	}
}

func TestGatekeepingBeforeLogin(t *testing.T) {
	tests := []string{"MSG hello", "WHO", "DM bob hi"}

	s := newTestServer(t)
	loginUser(t, s, "bob")

	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			conn := &fakeConn{}
			s.handleLine(NewSession(conn), line)
			lines := conn.Lines()
			if len(lines) != 1 || lines[0] != "ERR must-login-first" {
				t.Errorf("reply = %q, want [\"ERR must-login-first\"]", lines)
			}
		})
	}

	if got := s.registry.Count(); got != 1 {
		t.Errorf("registry mutated by pre-login commands: count = %d, want 1", got)
	}
}

func TestPingNeedsNoLogin(t *testing.T) {
	s := newTestServer(t)
	conn := &fakeConn{}
	sess := NewSession(conn)

	s.handleLine(sess, "PING")

	lines := conn.Lines()
	if len(lines) != 1 || lines[0] != "PONG" {
		t.Errorf("reply = %q, want [\"PONG\"]", lines)
	}
	if got := s.registry.Count(); got != 0 {
		t.Errorf("PING registered a session: count = %d", got)
	}

	// Still answered after login.
	loginSess, loginConn := loginUser(t, s, "alice")
	s.handleLine(loginSess, "PING")
	lines = loginConn.Lines()
	if len(lines) != 1 || lines[0] != "PONG" {
		t.Errorf("post-login reply = %q, want [\"PONG\"]", lines)
	}
}

func TestUnknownCommands(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"garbage", "FROBNICATE now"},
		{"lowercase login", "login alice"},
		{"empty line", ""},
		{"invalid utf-8", "MSG \xff\xfe"},
	}

	s := newTestServer(t)
	sess, conn := loginUser(t, s, "alice")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.handleLine(sess, tt.line)
			lines := conn.Lines()
			if len(lines) != 1 || lines[0] != "ERR unknown-command" {
				t.Errorf("reply = %q, want [\"ERR unknown-command\"]", lines)
			}
			conn.mu.Lock()
			conn.buf.Reset()
			conn.mu.Unlock()
		})
	}
}

func TestMsgBroadcastsVerbatim(t *testing.T) {
	s := newTestServer(t)
	aliceSess, aliceConn := loginUser(t, s, "alice")
	_, bobConn := loginUser(t, s, "bob")

	s.handleLine(aliceSess, "MSG  leading and  inner  spaces")

	lines := bobConn.Lines()
	want := "MSG alice  leading and  inner  spaces"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("bob received %q, want [%q]", lines, want)
	}
	// Fire-and-forget: no reply and no echo to the sender.
	if lines := aliceConn.Lines(); len(lines) != 0 {
		t.Errorf("alice received %q, want nothing", lines)
	}
}

func TestWhoListsRegistrationOrder(t *testing.T) {
	s := newTestServer(t)
	aliceSess, aliceConn := loginUser(t, s, "alice")
	loginUser(t, s, "bob")
	loginUser(t, s, "carol")

	s.handleLine(aliceSess, "WHO")

	lines := aliceConn.Lines()
	want := []string{"USER alice", "USER bob", "USER carol"}
	if len(lines) != len(want) {
		t.Fatalf("WHO returned %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("WHO line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDMDispatch(t *testing.T) {
	s := newTestServer(t)
	aliceSess, aliceConn := loginUser(t, s, "alice")
	_, bobConn := loginUser(t, s, "bob")

	s.handleLine(aliceSess, "DM bob did you see this?")
	lines := bobConn.Lines()
	if len(lines) != 1 || lines[0] != "DM alice did you see this?" {
		t.Errorf("bob received %q", lines)
	}
	if lines := aliceConn.Lines(); len(lines) != 0 {
		t.Errorf("alice received confirmation %q, want none", lines)
	}

	s.handleLine(aliceSess, "DM ghost hi")
	lines = aliceConn.Lines()
	if len(lines) != 1 || lines[0] != "ERR user-not-found" {
		t.Errorf("DM to ghost replied %q, want [\"ERR user-not-found\"]", lines)
	}
	aliceConn.mu.Lock()
	aliceConn.buf.Reset()
	aliceConn.mu.Unlock()

	for _, malformed := range []string{"DM", "DM bob", "DM bob "} {
		s.handleLine(aliceSess, malformed)
		lines = aliceConn.Lines()
		if len(lines) != 1 || lines[0] != "ERR invalid-dm-format" {
			t.Errorf("%q replied %q, want [\"ERR invalid-dm-format\"]", malformed, lines)
		}
		aliceConn.mu.Lock()
		aliceConn.buf.Reset()
		aliceConn.mu.Unlock()
	}
}

// Any line, even a rejected or unparseable one, counts as client activity.
func TestEveryLineRefreshesActivity(t *testing.T) {
	s := newTestServer(t)
	sess, _ := loginUser(t, s, "alice")

	stale := time.Now().Add(-5 * time.Minute)
	sess.lastActivity.Store(stale.UnixNano())

	s.handleLine(sess, "GARBAGE input")

	if sess.LastActivity().Before(time.Now().Add(-time.Minute)) {
		t.Error("garbage line did not refresh last activity")
	}
}

func TestTeardownAnnouncesExactlyOnce(t *testing.T) {
	s := newTestServer(t)
	aliceSess, _ := loginUser(t, s, "alice")
	_, bobConn := loginUser(t, s, "bob")

	s.teardown(aliceSess)
	s.teardown(aliceSess) // double disconnect must not re-announce

	var notices int
	for _, line := range bobConn.Lines() {
		if line == "INFO alice disconnected" {
			notices++
		}
	}
	if notices != 1 {
		t.Errorf("bob saw %d disconnect notices, want exactly 1", notices)
	}
	if _, ok := s.registry.Lookup("alice"); ok {
		t.Error("alice still registered after teardown")
	}
	if got := s.metrics.TotalDisconnects.Load(); got != 1 {
		t.Errorf("TotalDisconnects = %d, want 1", got)
	}
}

func TestTeardownBeforeLoginIsSilent(t *testing.T) {
	s := newTestServer(t)
	_, bobConn := loginUser(t, s, "bob")

	s.teardown(NewSession(&fakeConn{}))

	if lines := bobConn.Lines(); len(lines) != 0 {
		t.Errorf("unauthenticated teardown announced %q, want nothing", lines)
	}
}

// End-to-end over a loopback listener: the full accept/handle/teardown path.
func TestServerEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := New(cfg, Dependencies{Audit: store.NewMemory()})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown()
	addr := s.ln.Addr().String()

	alice, aliceR := dialAndLogin(t, addr, "alice")
	defer func() { _ = alice.Close() }()
	bob, bobR := dialAndLogin(t, addr, "bob")
	defer func() { _ = bob.Close() }()

	// Broadcast reaches bob, not alice.
	send(t, alice, "MSG hello everyone")
	expectLine(t, bob, bobR, "MSG alice hello everyone")

	// PING after MSG proves no echo arrived on alice's connection first.
	send(t, alice, "PING")
	expectLine(t, alice, aliceR, "PONG")

	// WHO in registration order.
	send(t, bob, "WHO")
	expectLine(t, bob, bobR, "USER alice")
	expectLine(t, bob, bobR, "USER bob")

	// DM is targeted.
	send(t, bob, "DM alice secret")
	expectLine(t, alice, aliceR, "DM bob secret")

	// Clean disconnect announces to the rest.
	_ = alice.Close()
	expectLine(t, bob, bobR, "INFO alice disconnected")
}

func dialAndLogin(t *testing.T, addr, name string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	r := bufio.NewReader(conn)
	send(t, conn, "LOGIN "+name)
	expectLine(t, conn, r, "OK")
	return conn, r
}

func send(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func expectLine(t *testing.T, conn net.Conn, r *bufio.Reader, want string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read (want %q): %v", want, err)
	}
	if got := line[:len(line)-1]; got != want {
		t.Fatalf("read %q, want %q", got, want)
	}
}
