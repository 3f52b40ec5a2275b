package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/NicolasHaas/linechat/pkg/model"
)

var (
	// ErrUsernameTaken is returned when a login races or repeats a name
	// already held by a live session.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidUsername is returned for empty, whitespace-only, or
	// otherwise malformed usernames.
	ErrInvalidUsername = errors.New("invalid username")
)

// Registry is the shared directory of logged-in users: the single source
// of truth for "who is online". A session's presence in the registry is
// what makes it visible to WHO, DM and broadcast.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // username -> session
	nextSeq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// TryRegister atomically binds username to sess. On success the session's
// Username is set and the session becomes visible to all delivery paths.
// Fails with ErrInvalidUsername or ErrUsernameTaken.
func (r *Registry) TryRegister(username string, sess *Session) error {
	if strings.TrimSpace(username) == "" {
		return ErrInvalidUsername
	}
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUsername, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[username]; exists {
		return ErrUsernameTaken
	}
	sess.Username = username
	sess.seq = r.nextSeq
	r.nextSeq++
	r.sessions[username] = sess
	return nil
}

// Unregister removes the username's entry if present and reports whether
// this call removed it. Idempotent: the handler and the idle monitor may
// both tear down the same session, and exactly one caller wins. The winner
// owns the disconnect announcement.
func (r *Registry) Unregister(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[username]; !ok {
		return false
	}
	delete(r.sessions, username)
	return true
}

// Lookup returns the session currently holding username.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Snapshot returns a consistent copy of all registered sessions in
// registration order. The lock is held only for the copy, so slow network
// writes by callers never block logins.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
