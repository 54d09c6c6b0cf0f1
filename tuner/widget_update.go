package main

import (
	"sync"
	"time"
)

// throttle rate-limits widget updates scheduled from the loop goroutine.
type throttle struct {
	mu   sync.Mutex
	last time.Time
}

// allow reports whether at least interval has passed since the last allowed
// call, and records now if so.
func (t *throttle) allow(now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.last) < interval {
		return false
	}
	t.last = now
	return true
}
