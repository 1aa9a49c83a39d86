// Package memory keeps a short, per-user history of chat prompts. Histories
// are capped at a fixed number of prompts and forgotten after a period of
// inactivity; decay is applied lazily by SweepExpired, not by a timer.
package memory

import (
	"omega/internal/models"
	"sync"
	"time"
)

// Store is a concurrency-safe conversation memory.
type Store struct {
	limit int
	decay time.Duration
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*models.UserMemory
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store keeping at most limit prompts per user and
// forgetting users idle for longer than decay.
func NewStore(limit int, decay time.Duration, opts ...Option) *Store {
	s := &Store{
		limit: limit,
		decay: decay,
		now:   time.Now,
		users: make(map[string]*models.UserMemory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends prompt to the user's history, truncates it to the most
// recent prompts and returns a copy of the history, oldest first.
func (s *Store) Record(userID, prompt string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.users[userID]
	if !ok {
		mem = &models.UserMemory{}
		s.users[userID] = mem
	}

	mem.Messages = append(mem.Messages, prompt)
	if over := len(mem.Messages) - s.limit; over > 0 {
		mem.Messages = append(mem.Messages[:0], mem.Messages[over:]...)
	}
	mem.LastActive = s.now()

	return append([]string(nil), mem.Messages...)
}

// SweepExpired removes every user whose last activity is older than the
// decay threshold and returns how many were removed.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.decay)
	removed := 0
	for userID, mem := range s.users {
		if mem.LastActive.Before(cutoff) {
			delete(s.users, userID)
			removed++
		}
	}
	return removed
}

// Get returns a copy of one user's memory.
func (s *Store) Get(userID string) (models.UserMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.users[userID]
	if !ok {
		return models.UserMemory{}, false
	}
	return copyMemory(mem), true
}

// Snapshot returns a deep copy of every user's memory.
func (s *Store) Snapshot() map[string]models.UserMemory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.UserMemory, len(s.users))
	for userID, mem := range s.users {
		out[userID] = copyMemory(mem)
	}
	return out
}

// Len returns the number of users with a history.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func copyMemory(mem *models.UserMemory) models.UserMemory {
	return models.UserMemory{
		Messages:   append([]string(nil), mem.Messages...),
		LastActive: mem.LastActive,
	}
}
