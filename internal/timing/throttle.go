package timing

import (
	"sync"
	"time"
)

// Throttler runs fn on the first Call, then ignores calls until limit has
// elapsed since that run (leading edge, fixed window).
type Throttler[T any] struct {
	mu    sync.Mutex
	fn    func(T)
	limit time.Duration
	now   func() time.Time
	last  time.Time
	ran   bool
}

// Throttle returns a Throttler wrapping fn.
func Throttle[T any](fn func(T), limit time.Duration) *Throttler[T] {
	return &Throttler[T]{fn: fn, limit: limit, now: time.Now}
}

// Call invokes fn if the window is open and reports whether it did.
func (t *Throttler[T]) Call(arg T) bool {
	t.mu.Lock()
	now := t.now()
	if t.ran && now.Sub(t.last) < t.limit {
		t.mu.Unlock()
		return false
	}
	t.ran = true
	t.last = now
	t.mu.Unlock()

	t.fn(arg)
	return true
}

// Reset reopens the window so the next Call runs immediately.
func (t *Throttler[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ran = false
}
