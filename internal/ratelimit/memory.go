package ratelimit

import (
	"sync"
	"time"
)

// clientWindow holds the admitted request timestamps of one client, oldest first.
type clientWindow struct {
	stamps []time.Time
}

// evict drops timestamps at or before cutoff from the front.
func (w *clientWindow) evict(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// MemoryLimiter is an in-memory sliding window limiter. Only admitted
// requests are recorded, so a client hammering the gate while rejected does
// not extend its own lockout. A background goroutine removes clients whose
// windows have emptied.
type MemoryLimiter struct {
	limit           int
	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]*clientWindow
	done    chan struct{}
	closed  bool
}

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryLimiter) {
		m.now = now
	}
}

// NewMemoryLimiter creates a limiter admitting limit requests per window for
// each key. It starts a background goroutine that evicts idle keys every
// cleanupInterval.
func NewMemoryLimiter(limit int, window time.Duration, cleanupInterval time.Duration, opts ...Option) *MemoryLimiter {
	m := &MemoryLimiter{
		limit:           limit,
		window:          window,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]*clientWindow),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanup()
	return m
}

// Allow checks whether a request from the given key should be allowed.
func (m *MemoryLimiter) Allow(key string) (bool, Info) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, exists := m.entries[key]
	if !exists {
		w = &clientWindow{}
		m.entries[key] = w
	}
	w.evict(now.Add(-m.window))

	allowed := len(w.stamps) < m.limit
	if allowed {
		w.stamps = append(w.stamps, now)
	}

	info := Info{
		Limit:     m.limit,
		Remaining: m.limit - len(w.stamps),
		ResetAt:   now,
	}
	if len(w.stamps) > 0 {
		info.ResetAt = w.stamps[0].Add(m.window)
	}
	if !allowed {
		info.RetryAfter = info.ResetAt.Sub(now)
	}

	return allowed, info
}

// Len returns the number of tracked clients.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the background cleanup goroutine.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

// cleanup periodically evicts clients with no requests inside the window.
func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// evictIdle removes clients whose windows are empty at the current time.
func (m *MemoryLimiter) evictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.window)
	removed := 0
	for key, w := range m.entries {
		w.evict(cutoff)
		if len(w.stamps) == 0 {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
