// Package ratelimit gates chat requests with a per-client sliding window:
// a client may make at most Limit admitted requests in any trailing Window.
// Middleware adapts a Limiter to net/http and sets X-RateLimit-* headers.
package ratelimit

import "time"

// Limiter admits or rejects requests per client key. Implementations must be
// safe for concurrent use.
type Limiter interface {
	// Allow records an admitted request for key, or rejects it without
	// using up a slot in the window.
	Allow(key string) (allowed bool, info Info)

	// Close stops background cleanup.
	Close()
}

// Info describes the window after an Allow call.
type Info struct {
	Limit      int           // Admitted requests per window
	Remaining  int           // Slots left in the current window
	ResetAt    time.Time     // When the oldest counted request leaves the window
	RetryAfter time.Duration // Wait before the next slot frees (denied only)
}
