package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CancelFunc removes a scheduled task
type CancelFunc func()

// specParser accepts cron specs with an optional leading seconds field and
// descriptors such as @daily
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec can be scheduled with AddFunc
func ValidateSpec(spec string) error {
	_, err := specParser.Parse(spec)
	return err
}

// Scheduler runs periodic tasks on a shared cron instance
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a new scheduler. Panicking jobs are recovered and logged.
func New(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
	}
}

// Every runs fn every interval, starting one interval from now.
// Intervals are rounded to whole seconds with a one second minimum.
func (s *Scheduler) Every(interval time.Duration, fn func()) (CancelFunc, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	return s.canceller(id), nil
}

// AddFunc registers fn under a cron spec
func (s *Scheduler) AddFunc(spec, name string, fn func()) (CancelFunc, error) {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return nil, fmt.Errorf("register %s task: %w", name, err)
	}
	s.logger.Info("Task registered",
		zap.String("task", name),
		zap.String("spec", spec))
	return s.canceller(id), nil
}

// Len returns the number of scheduled tasks
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start starts running tasks in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for scheduled tasks: %w", ctx.Err())
	}
}

func (s *Scheduler) canceller(id cron.EntryID) CancelFunc {
	return func() {
		s.cron.Remove(id)
	}
}

// cronLogger adapts zap to the cron logger interface
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
