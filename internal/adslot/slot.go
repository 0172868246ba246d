// Package adslot simulates loading banner and interstitial ad placements.
package adslot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Format is an ad placement format
type Format string

const (
	FormatBanner       Format = "banner"
	FormatInterstitial Format = "interstitial"
)

// ParseFormat validates s as a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatBanner, FormatInterstitial:
		return f, nil
	default:
		return "", fmt.Errorf("unknown ad format: %q", s)
	}
}

// State is the lifecycle state of a Slot
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
	StateClosed  State = "closed"
)

// ErrLoadFailed is recorded on a slot whose simulated load failed
var ErrLoadFailed = errors.New("ad failed to load")

// Creative is the content of a loaded ad
type Creative struct {
	ID           string `json:"id"`
	Format       Format `json:"format"`
	Headline     string `json:"headline"`
	CallToAction string `json:"call_to_action"`
}

// Slot is one ad placement
type Slot struct {
	Format   Format    `json:"format"`
	State    State     `json:"state"`
	Visible  bool      `json:"visible"`
	Creative *Creative `json:"creative,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Close dismisses the slot
func (s *Slot) Close() {
	s.State = StateClosed
	s.Visible = false
}

// fail applies the format's failure behaviour: banners render nothing,
// interstitials close immediately
func (s *Slot) fail(err error) {
	s.Creative = nil
	s.Visible = false
	s.Error = err.Error()
	if s.Format == FormatInterstitial {
		s.State = StateClosed
		return
	}
	s.State = StateError
}

// Option configures a Loader
type Option func(*Loader)

// WithFailureFunc replaces the random failure injector
func WithFailureFunc(fn func() bool) Option {
	return func(l *Loader) { l.shouldFail = fn }
}

// Loader produces slots after an artificial load delay
type Loader struct {
	delay      time.Duration
	shouldFail func() bool
}

// NewLoader creates a loader failing with probability failureRate
func NewLoader(delay time.Duration, failureRate float64, opts ...Option) *Loader {
	l := &Loader{
		delay: delay,
		shouldFail: func() bool {
			return failureRate > 0 && rand.Float64() < failureRate
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load waits for the load delay and returns the resulting slot. It returns an
// error only when ctx ends first.
func (l *Loader) Load(ctx context.Context, format Format) (*Slot, error) {
	slot := &Slot{Format: format, State: StateLoading}

	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if l.shouldFail() {
		slot.fail(ErrLoadFailed)
		return slot, nil
	}

	slot.State = StateReady
	slot.Visible = true
	slot.Creative = newCreative(format)
	return slot, nil
}

func newCreative(format Format) *Creative {
	c := &Creative{ID: uuid.NewString(), Format: format}
	switch format {
	case FormatInterstitial:
		c.Headline = "Sponsored"
		c.CallToAction = "Continue"
	default:
		c.Headline = "Advertisement"
		c.CallToAction = "Learn more"
	}
	return c
}
