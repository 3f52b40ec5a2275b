package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/NicolasHaas/linechat/pkg/model"
	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// Start binds the TCP listener and launches the accept loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("chat server listening", "addr", ln.Addr().String())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					if errors.Is(err, net.ErrClosed) {
						return
					}
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.HandleConn(conn)
		}
	}()

	return nil
}

// HandleConn runs one connection's control loop to completion. The
// external accept loop calls this once per accepted socket; tests drive it
// directly with pipe connections.
func (s *Server) HandleConn(conn net.Conn) {
	sess := NewSession(conn)
	remote := sess.RemoteAddr()

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	s.recordEvent(model.EventConnect, sess, remote)
	slog.Debug("new connection", "session", sess.ID, "remote", remote)

	// Teardown must run exactly once per connection whether the peer
	// closed, a read failed, or the idle monitor closed the socket out
	// from under a blocked read.
	defer s.teardown(sess)

	sc := protocol.NewLineScanner(conn)
	for sc.Scan() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.handleLine(sess, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Debug("read error", "session", sess.ID, "err", err)
	}
}

// handleLine parses one client line and dispatches it. Every line, parseable
// or not, counts as activity: a chatty-but-malformed client is alive, and
// dropping it as idle would be spurious.
func (s *Server) handleLine(sess *Session, line string) {
	sess.Touch()

	if !utf8.ValidString(line) {
		s.reply(sess, protocol.FormatErr(protocol.CodeUnknownCommand))
		return
	}

	cmd := protocol.Parse(line)
	authed := sess.Username != ""

	switch cmd.Name {
	case protocol.CmdLogin:
		if authed {
			s.reply(sess, protocol.FormatErr(protocol.CodeAlreadyLoggedIn))
			return
		}
		s.handleLogin(sess, cmd.Args)

	case protocol.CmdPing:
		// Answered in any state; a health probe needs no login.
		s.reply(sess, protocol.RespPong)

	case protocol.CmdMsg:
		if !authed {
			s.reply(sess, protocol.FormatErr(protocol.CodeMustLoginFirst))
			return
		}
		// Empty text is a valid, empty-bodied broadcast.
		s.broadcast.Broadcast(sess.Username, cmd.Args)
		slog.Debug("broadcast", "from", sess.Username, "bytes", len(cmd.Args))

	case protocol.CmdWho:
		if !authed {
			s.reply(sess, protocol.FormatErr(protocol.CodeMustLoginFirst))
			return
		}
		for _, other := range s.registry.Snapshot() {
			s.reply(sess, protocol.FormatUser(other.Username))
		}

	case protocol.CmdDM:
		if !authed {
			s.reply(sess, protocol.FormatErr(protocol.CodeMustLoginFirst))
			return
		}
		target, text, ok := protocol.SplitDM(cmd.Args)
		if !ok {
			s.reply(sess, protocol.FormatErr(protocol.CodeInvalidDMFormat))
			return
		}
		if err := s.broadcast.DirectMessage(sess.Username, target, text); err != nil {
			s.reply(sess, protocol.FormatErr(protocol.CodeUserNotFound))
		}

	default:
		s.metrics.UnknownCommands.Add(1)
		s.reply(sess, protocol.FormatErr(protocol.CodeUnknownCommand))
	}
}

// handleLogin validates and atomically claims the username. The session is
// invisible to WHO/DM/broadcast until TryRegister succeeds.
func (s *Server) handleLogin(sess *Session, args string) {
	username := strings.TrimSpace(args)

	if err := s.registry.TryRegister(username, sess); err != nil {
		s.metrics.LoginsRejected.Add(1)
		code := protocol.CodeInvalidUsername
		if errors.Is(err, ErrUsernameTaken) {
			code = protocol.CodeUsernameTaken
		}
		s.recordEvent(model.EventLoginRejected, sess, code)
		s.reply(sess, protocol.FormatErr(code))
		return
	}

	s.metrics.LoginsAccepted.Add(1)
	s.recordEvent(model.EventLogin, sess, "")
	s.reply(sess, protocol.RespOK)
	slog.Info("user logged in", "user", username, "session", sess.ID, "remote", sess.RemoteAddr())
}

// teardown closes the connection and, if this caller wins the unregister
// race, announces the departure to everyone else. Runs once per connection
// via the handler's defer; the idle monitor runs its own eviction path and
// whoever unregisters first owns the announcement.
func (s *Server) teardown(sess *Session) {
	_ = sess.Close()
	s.metrics.ActiveConnections.Add(-1)

	username := sess.Username
	if username == "" {
		slog.Debug("connection closed before login", "session", sess.ID)
		return
	}

	if s.registry.Unregister(username) {
		s.metrics.TotalDisconnects.Add(1)
		s.recordEvent(model.EventDisconnect, sess, "")
		s.broadcast.NotifyAll("", username+" disconnected")
		slog.Info("user disconnected", "user", username, "session", sess.ID)
	}
}

// reply writes one response line to the session; a failed write means the
// peer is unreachable, which its own read loop will discover.
func (s *Server) reply(sess *Session, line string) {
	if err := sess.WriteLine(line); err != nil {
		slog.Debug("reply write failed", "session", sess.ID, "err", err)
	}
}

// recordEvent appends to the audit trail when one is configured.
func (s *Server) recordEvent(t model.EventType, sess *Session, detail string) {
	if s.audit == nil {
		return
	}
	ev := model.SessionEvent{
		SessionID: sess.ID,
		Username:  sess.Username,
		Type:      t,
		Detail:    detail,
	}
	if err := s.audit.RecordEvent(ev); err != nil {
		slog.Warn("audit write failed", "type", t, "err", err)
	}
}
