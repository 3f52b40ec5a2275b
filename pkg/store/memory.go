package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/linechat/pkg/model"
)

// MemoryStore provides an in-memory EventStore implementation for tests.
// It mirrors SQLite behavior for validation and ordering.
type MemoryStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	nextID int64
	events []model.SessionEvent
}

var _ EventStore = (*MemoryStore)(nil)

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{now: now, nextID: 1}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// RecordEvent appends one event to the in-memory trail.
func (s *MemoryStore) RecordEvent(ev model.SessionEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("store: record event: unknown type %q", ev.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *MemoryStore) ListEvents(limit int) ([]model.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.SessionEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// CountByType returns how many events of the given type were recorded.
func (s *MemoryStore) CountByType(t model.EventType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n, nil
}
