package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adgate/internal/adslot"
	"adgate/internal/async"
	"adgate/internal/config"
	"adgate/internal/notify"
	"adgate/internal/scheduler"
	"adgate/internal/server/repository"
	"adgate/internal/trigger"
	"adgate/internal/types"

	"go.uber.org/zap"
)

// ErrEmailNotConfigured is returned by SendEmail when no provider is set
var ErrEmailNotConfigured = errors.New("email provider not configured")

// Pinger is a dependency that can report its health
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependencies are the collaborators of a Service
type Dependencies struct {
	Stores     repository.Stores
	Email      notify.Provider
	Dispatcher *notify.Dispatcher
	Scheduler  *scheduler.Scheduler
	// Health lists the components reported by HealthCheck, by name
	Health map[string]Pinger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSlotLoader overrides the ad slot loader built from configuration
func WithSlotLoader(l *adslot.Loader) Option {
	return func(s *Service) {
		s.slots = l
	}
}

// Service represents the ad gating service
type Service struct {
	config     *config.AdsConfig
	stores     repository.Stores
	email      notify.Provider
	dispatcher *notify.Dispatcher
	scheduler  *scheduler.Scheduler
	health     map[string]Pinger
	slots      *adslot.Loader
	logger     *zap.Logger
	now        func() time.Time
	startTime  time.Time

	settings       atomic.Pointer[types.FrequencySettings]
	settingsLoader *async.Throttler[context.Context, types.FrequencySettings]
	userLocks      *async.KeyedMutex

	sessionsMu sync.Mutex
	sessions   map[string]*trigger.Session

	dailyReset scheduler.CancelFunc
	stopOnce   sync.Once
}

// NewService creates new service instance
func NewService(cfg *config.AdsConfig, deps Dependencies, logger *zap.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ads configuration is nil")
	}
	if deps.Stores.Profiles == nil || deps.Stores.Settings == nil ||
		deps.Stores.Subscriptions == nil || deps.Stores.Notifications == nil {
		return nil, fmt.Errorf("every store is required")
	}

	svc := &Service{
		config:     cfg,
		stores:     deps.Stores,
		email:      deps.Email,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		health:     deps.Health,
		logger:     logger,
		now:        time.Now,
		userLocks:  async.NewKeyedMutex(),
		sessions:   make(map[string]*trigger.Session),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.slots == nil {
		svc.slots = adslot.NewLoader(cfg.LoadDelay, cfg.FailureRate)
	}
	svc.startTime = svc.now()

	defaults := cfg.Frequency
	if err := defaults.Validate(); err != nil {
		defaults = types.DefaultFrequencySettings()
	}
	svc.settings.Store(&defaults)
	svc.settingsLoader = async.Throttle(svc.loadSettings, cfg.SettingsRefresh, async.WithClock(svc.now))

	return svc, nil
}

// Start registers the background jobs of the service
func (s *Service) Start() error {
	if s.config.DailyResetCron == "" || s.scheduler == nil {
		return nil
	}

	cancel, err := s.scheduler.AddFunc(s.config.DailyResetCron, "daily_reset", func() {
		ctx, done := context.WithTimeout(context.Background(), time.Minute)
		defer done()
		_, _ = s.ResetDailyCounters(ctx)
	})
	if err != nil {
		return err
	}
	s.dailyReset = cancel
	return nil
}

// Stop ends every session, removes background jobs and flushes pending events
func (s *Service) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.dailyReset != nil {
			s.dailyReset()
		}

		s.sessionsMu.Lock()
		for id, sess := range s.sessions {
			sess.Stop()
			delete(s.sessions, id)
		}
		s.sessionsMu.Unlock()

		if s.dispatcher != nil {
			err = s.dispatcher.Stop(ctx)
		}
	})
	return err
}

// publish hands an event to the dispatcher when one is configured
func (s *Service) publish(eventType, userID string, data any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(notify.NewEvent(eventType, userID, data))
}

// lockUser serialises read-modify-write sequences on one user's profile
func (s *Service) lockUser(ctx context.Context, userID string) (func(), error) {
	release, err := s.userLocks.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wait for profile lock: %w", err)
	}
	return release, nil
}
