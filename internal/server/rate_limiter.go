// Package server per-connection throttling. Each client gets its own token
// bucket so one flooding connection cannot starve the hub.
package server

import (
	"sync"
	"time"
)

type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastSeen time.Time
}

func newTokenBucket(burst int, refill time.Duration) *tokenBucket {
	if burst <= 0 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}
	return &tokenBucket{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     float64(burst) / refill.Seconds(),
		lastSeen: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastSeen).Seconds()
	b.lastSeen = now

	if elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*b.rate, b.capacity)
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
