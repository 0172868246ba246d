package async

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler lets at most one call through per window
type Throttler[A, R any] struct {
	fn    func(A) R
	limit time.Duration
	now   func() time.Time

	mu      sync.Mutex
	limiter *rate.Limiter
	last    R
}

// ThrottleOption configures a Throttler
type ThrottleOption func(*throttleOptions)

type throttleOptions struct {
	now func() time.Time
}

// WithClock sets the clock used to measure windows
func WithClock(now func() time.Time) ThrottleOption {
	return func(o *throttleOptions) {
		o.now = now
	}
}

// Throttle wraps fn so that it runs at most once per limit. Calls made during
// the cooldown are dropped and get the result of the last real call.
func Throttle[A, R any](fn func(A) R, limit time.Duration, opts ...ThrottleOption) *Throttler[A, R] {
	o := throttleOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Throttler[A, R]{
		fn:      fn,
		limit:   limit,
		now:     o.now,
		limiter: newWindowLimiter(limit),
	}
}

// Call runs fn(a) unless the window is still cooling down
func (t *Throttler[A, R]) Call(a A) R {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limiter.AllowN(t.now(), 1) {
		t.last = t.fn(a)
	}
	return t.last
}

// Cancel ends the current cooldown; the next call goes through
func (t *Throttler[A, R]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiter = newWindowLimiter(t.limit)
}

// newWindowLimiter allows one event per window, starting with the token available
func newWindowLimiter(window time.Duration) *rate.Limiter {
	if window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(window), 1)
}
