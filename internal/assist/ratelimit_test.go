package assist

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_QuotaExhaustion(t *testing.T) {
	rl := NewRateLimiter(30, time.Minute)

	for i := 0; i < 30; i++ {
		assert.True(t, rl.Admit("1.2.3.4"), "request %d should be admitted", i+1)
	}
	assert.False(t, rl.Admit("1.2.3.4"), "31st request should be rejected")
	assert.False(t, rl.Admit("1.2.3.4"), "rejection persists within the window")
}

func TestRateLimiter_WindowRollover(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Admit("a"))
	assert.True(t, rl.Admit("a"))
	assert.False(t, rl.Admit("a"))

	// Just past the window: the next request starts a fresh one.
	now = now.Add(time.Minute + time.Millisecond)
	assert.True(t, rl.Admit("a"))
	assert.True(t, rl.Admit("a"))
	assert.False(t, rl.Admit("a"))
}

func TestRateLimiter_IndependentClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Admit("a"))
	assert.False(t, rl.Admit("a"))
	assert.True(t, rl.Admit("b"), "another client has its own window")
}

func TestRateLimiter_EmptyKeyPooled(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Admit(""))
	assert.False(t, rl.Admit(""), "anonymous callers share one bucket")
	assert.False(t, rl.Admit("unknown"), "explicit unknown maps to the same bucket")
}

func TestRateLimiter_SweepRemovesExpired(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	for i := 0; i < 100; i++ {
		rl.Admit(fmt.Sprintf("client-%d", i))
	}

	now = now.Add(limiterSweepInterval + time.Second)
	rl.Admit("fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 1, "expired windows should be swept")
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", n%3)
			for j := 0; j < 100; j++ {
				rl.Admit(key)
			}
		}(i)
	}
	wg.Wait()
}
