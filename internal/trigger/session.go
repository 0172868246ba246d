package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"adgate/internal/async"
	"adgate/internal/scheduler"
	"adgate/internal/types"
)

// ProfileStore is the subset of the profile store a session needs
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*types.Profile, error)
	Modify(ctx context.Context, userID string, fn func(p *types.Profile) *types.ProfilePatch) (*types.Profile, error)
}

// Ticker schedules periodic work
type Ticker interface {
	Every(interval time.Duration, fn func()) (scheduler.CancelFunc, error)
}

// TriggerFunc receives the latest flags after one of them turned on
type TriggerFunc func(userID string, flags types.TriggerFlags)

// Option configures a Session
type Option func(*Session)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithPollInterval overrides PollInterval
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithOnTrigger announces rising flags. Announcements within wait of each
// other collapse into one carrying the latest flags.
func WithOnTrigger(fn TriggerFunc, wait time.Duration) Option {
	return func(s *Session) {
		s.onTrigger = fn
		s.announceWait = wait
	}
}

// Session tracks the trigger flags of one user while they are active
type Session struct {
	userID       string
	store        ProfileStore
	ticker       Ticker
	logger       *zap.Logger
	now          func() time.Time
	pollInterval time.Duration

	onTrigger    TriggerFunc
	announceWait time.Duration
	announcer    *async.Debouncer[types.TriggerFlags]

	mu sync.Mutex
	// gen counts applied writes; a read started under an older gen is dropped
	gen     uint64
	profile *types.Profile
	flags   types.TriggerFlags
	cancel  scheduler.CancelFunc
}

// NewSession creates a session for userID. Call Start to begin polling.
func NewSession(userID string, store ProfileStore, ticker Ticker, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		userID:       userID,
		store:        store,
		ticker:       ticker,
		logger:       logger.With(zap.String("user_id", userID)),
		now:          time.Now,
		pollInterval: PollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onTrigger != nil {
		s.announcer = async.Debounce(func(flags types.TriggerFlags) {
			s.onTrigger(s.userID, flags)
		}, s.announceWait)
	}
	return s
}

// UserID returns the session owner
func (s *Session) UserID() string {
	return s.userID
}

// Start computes the flags once and then every poll interval. A session
// that already wrote keeps the profile its write returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	written := s.gen > 0
	s.mu.Unlock()

	if !written {
		if err := s.Recompute(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.ticker == nil {
		return nil
	}

	cancel, err := s.ticker.Every(s.pollInterval, func() {
		pollCtx, done := context.WithTimeout(context.Background(), s.pollInterval)
		defer done()
		_ = s.Recompute(pollCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule session poll: %w", err)
	}
	s.cancel = cancel
	return nil
}

// Stop cancels periodic polling and any pending announcement
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.announcer != nil {
		s.announcer.Cancel()
	}
}

// Running reports whether periodic polling is active
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Flags returns the current flags
func (s *Session) Flags() types.TriggerFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Profile returns a copy of the last snapshot read, or nil
func (s *Session) Profile() *types.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// Recompute re-reads the snapshot and recomputes every flag.
// On failure the previous flags are kept. A snapshot read while a write
// of this session landed is discarded.
func (s *Session) Recompute(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	p, err := s.store.Get(ctx, s.userID)
	if err != nil {
		s.logger.Error("Failed to load profile", zap.Error(err))
		return fmt.Errorf("load profile: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("Dropping profile read overtaken by a write")
		return nil
	}
	prev := s.flags
	s.profile = p
	s.flags = Evaluate(s.now(), p)
	next := s.flags
	s.mu.Unlock()

	s.announce(prev, next)
	return nil
}

// IncrementCommentCount counts one more comment and recomputes
func (s *Session) IncrementCommentCount(ctx context.Context) error {
	p, err := s.store.Modify(ctx, s.userID, func(p *types.Profile) *types.ProfilePatch {
		return &types.ProfilePatch{CommentCount: types.IntPtr(p.CommentCount + 1)}
	})
	if err != nil {
		s.logger.Error("Failed to increment comment count", zap.Error(err))
		return fmt.Errorf("increment comment count: %w", err)
	}
	s.written(p)
	return nil
}

// ResetCommentCount zeroes the comment counter after a comment ad was shown
func (s *Session) ResetCommentCount(ctx context.Context) error {
	p, err := s.store.Modify(ctx, s.userID, func(*types.Profile) *types.ProfilePatch {
		return &types.ProfilePatch{CommentCount: types.IntPtr(0)}
	})
	if err != nil {
		s.logger.Error("Failed to reset comment count", zap.Error(err))
		return fmt.Errorf("reset comment count: %w", err)
	}
	s.written(p)
	return nil
}

// ResetSessionTime restarts the session clock after a time ad was shown
func (s *Session) ResetSessionTime(ctx context.Context) error {
	now := s.now()
	p, err := s.store.Modify(ctx, s.userID, func(*types.Profile) *types.ProfilePatch {
		return &types.ProfilePatch{SessionStartTime: types.TimePtr(now)}
	})
	if err != nil {
		s.logger.Error("Failed to reset session time", zap.Error(err))
		return fmt.Errorf("reset session time: %w", err)
	}
	s.written(p)
	return nil
}

// written installs the profile returned by a write and invalidates reads
// that started before it
func (s *Session) written(p *types.Profile) {
	s.mu.Lock()
	s.gen++
	prev := s.flags
	s.profile = p
	s.flags = Evaluate(s.now(), p)
	next := s.flags
	s.mu.Unlock()

	s.announce(prev, next)
}

func (s *Session) announce(prev, next types.TriggerFlags) {
	if !risen(prev, next) {
		return
	}
	s.logger.Debug("Trigger armed",
		zap.Bool("comment_ad", next.CommentAd),
		zap.Bool("time_ad", next.TimeAd),
		zap.Bool("post_ad", next.PostAd))
	if s.announcer != nil {
		s.announcer.Call(next)
	}
}
