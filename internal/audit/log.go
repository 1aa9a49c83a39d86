// Package audit keeps a fixed-capacity, append-only ring of notable gateway
// events for inspection through the admin surface.
package audit

import (
	"omega/internal/models"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is a concurrency-safe ring buffer of audit entries. Once full, each
// append overwrites the oldest entry.
type Log struct {
	now func() time.Time

	mu      sync.RWMutex
	entries []models.AuditEntry
	start   int // index of the oldest entry
	size    int
}

// NewLog returns a Log retaining at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{
		now:     time.Now,
		entries: make([]models.AuditEntry, capacity),
	}
}

// Append records an event. detail is copied so later mutation by the
// caller does not change the stored entry.
func (l *Log) Append(event string, detail map[string]interface{}) models.AuditEntry {
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Event:     event,
		Detail:    copyDetail(detail),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = entry
		l.size++
	} else {
		l.entries[l.start] = entry
		l.start = (l.start + 1) % capacity
	}
	return entry
}

// Tail returns the most recent limit entries in chronological order. A
// non-positive limit, or one larger than the log, returns every entry.
func (l *Log) Tail(limit int) []models.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}

	capacity := len(l.entries)
	out := make([]models.AuditEntry, 0, n)
	for i := l.size - n; i < l.size; i++ {
		out = append(out, l.entries[(l.start+i)%capacity])
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}

func copyDetail(detail map[string]interface{}) map[string]interface{} {
	if detail == nil {
		return nil
	}
	out := make(map[string]interface{}, len(detail))
	for k, v := range detail {
		out[k] = v
	}
	return out
}
