package assist

import (
	"sync"
	"time"
)

const limiterSweepInterval = 5 * time.Minute

// RateLimiter is a fixed-window per-client counter. Each client gets quota
// requests per window; the first request after a window expires starts a
// fresh one. Cleanup of stale entries happens inline during Admit calls.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*window
	quota     int
	length    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// window tracks one client's current fixed window.
type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter admitting quota requests per length.
func NewRateLimiter(quota int, length time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*window),
		quota:     quota,
		length:    length,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Admit reports whether a request from key fits within its current window.
// An empty key is pooled under a shared bucket rather than admitted freely.
func (rl *RateLimiter) Admit(key string) bool {
	if key == "" {
		key = "unknown"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Periodic cleanup of expired entries. A swept key is an expired
	// window, so admission semantics are unaffected.
	if now.Sub(rl.lastSweep) > limiterSweepInterval {
		for k, w := range rl.clients {
			if now.Sub(w.start) > rl.length {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	w, exists := rl.clients[key]
	if !exists || now.Sub(w.start) > rl.length {
		rl.clients[key] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= rl.quota
}
