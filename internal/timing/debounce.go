// Package timing rate-limits callbacks driven by noisy inputs such as GPS
// fixes and compass headings.
package timing

import (
	"sync"
	"time"
)

// Debouncer delays fn until wait has passed without another Call.
// Only the arguments of the last Call reach fn (trailing edge).
type Debouncer[T any] struct {
	mu      sync.Mutex
	fn      func(T)
	wait    time.Duration
	timer   *time.Timer
	gen     uint64
	last    T
	pending bool
}

// Debounce returns a Debouncer wrapping fn.
func Debounce[T any](fn func(T), wait time.Duration) *Debouncer[T] {
	return &Debouncer[T]{fn: fn, wait: wait}
}

// Call records arg and restarts the wait period.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = arg
	d.pending = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// fire runs fn unless a newer Call superseded the timer that triggered it.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.last
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(arg)
}

// Flush runs a pending invocation immediately. Returns false if nothing was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	arg := d.last
	d.pending = false
	d.gen++
	d.mu.Unlock()

	d.fn(arg)
	return true
}

// Stop drops any pending invocation.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.gen++
}

// Pending reports whether an invocation is waiting to fire.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
