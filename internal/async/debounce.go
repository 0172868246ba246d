// Package async holds the coordination helpers used to keep ad triggers and
// profile updates from firing twice: debounce, throttle and a FIFO mutex.
package async

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of calls into one trailing call
type Debouncer[A any] struct {
	fn   func(A)
	wait time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	arg     A
	pending bool
	gen     uint64
}

// Debounce wraps fn so that calls closer than wait apart collapse into a
// single call, made wait after the last one with its argument.
func Debounce[A any](fn func(A), wait time.Duration) *Debouncer[A] {
	return &Debouncer[A]{fn: fn, wait: wait}
}

// Call schedules fn(a), replacing any pending call
func (d *Debouncer[A]) Call(a A) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.arg = a
	d.pending = true
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// Cancel drops the pending call without running it
func (d *Debouncer[A]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// Flush runs the pending call now, if any
func (d *Debouncer[A]) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	arg := d.arg
	d.reset()
	d.mu.Unlock()

	d.fn(arg)
}

// Pending reports whether a call is waiting to run
func (d *Debouncer[A]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[A]) fire(gen uint64) {
	d.mu.Lock()
	// A newer Call, Cancel or Flush owns the slot now.
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.arg
	d.reset()
	d.mu.Unlock()

	d.fn(arg)
}

// reset clears the pending call. Caller holds d.mu.
func (d *Debouncer[A]) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero A
	d.arg = zero
	d.pending = false
	d.gen++
}
