// Package protocol defines the newline-delimited wire grammar spoken
// between linechat clients and the server.
//
// Every message is one line of UTF-8 text terminated by '\n'. The first
// whitespace-delimited token of a client line is the command name, matched
// case-sensitively; everything after the first space is the argument text,
// passed through verbatim.
package protocol

import (
	"bufio"
	"io"
	"strings"
)

const (
	// MaxLineLength caps a single wire line. Lines longer than this are a
	// transport error and terminate the connection.
	MaxLineLength = 4096

	// DefaultPort is the TCP port the server listens on unless overridden.
	DefaultPort = 4000
)

// Client command names.
const (
	CmdLogin = "LOGIN"
	CmdMsg   = "MSG"
	CmdWho   = "WHO"
	CmdDM    = "DM"
	CmdPing  = "PING"
)

// Server reply tokens.
const (
	RespOK   = "OK"
	RespPong = "PONG"
)

// Error codes carried on "ERR <code>" lines.
const (
	CodeUsernameTaken   = "username-taken"
	CodeInvalidUsername = "invalid-username"
	CodeAlreadyLoggedIn = "already-logged-in"
	CodeMustLoginFirst  = "must-login-first"
	CodeUserNotFound    = "user-not-found"
	CodeInvalidDMFormat = "invalid-dm-format"
	CodeUnknownCommand  = "unknown-command"
)

// InfoIdleTimeout is the notice sent to a session just before it is
// evicted for inactivity.
const InfoIdleTimeout = "idle-timeout"

// Command is one parsed client line.
type Command struct {
	Name string // first whitespace-delimited token, e.g. "LOGIN"
	Args string // remainder after the first space, verbatim (may be empty)
}

// Parse splits a line (already stripped of its trailing delimiter) into a
// command name and its argument text.
func Parse(line string) Command {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return Command{Name: line[:i], Args: line[i+1:]}
	}
	return Command{Name: line}
}

// SplitDM splits DM argument text into a target username and message text.
// Both parts must be present and non-empty; ok is false otherwise.
func SplitDM(args string) (target, text string, ok bool) {
	target, text, found := strings.Cut(args, " ")
	if !found || target == "" || text == "" {
		return "", "", false
	}
	return target, text, true
}

// FormatBroadcast renders a chat message as delivered to recipients.
func FormatBroadcast(sender, text string) string {
	return CmdMsg + " " + sender + " " + text
}

// FormatDirect renders a direct message as delivered to its target.
func FormatDirect(sender, text string) string {
	return CmdDM + " " + sender + " " + text
}

// FormatInfo renders a system notice.
func FormatInfo(text string) string {
	return "INFO " + text
}

// FormatUser renders one WHO listing entry.
func FormatUser(name string) string {
	return "USER " + name
}

// FormatErr renders an error reply.
func FormatErr(code string) string {
	return "ERR " + code
}

// NewLineScanner returns a scanner that yields one wire line per Scan call,
// capped at MaxLineLength. An over-long line surfaces as a scan error.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), MaxLineLength)
	return sc
}
