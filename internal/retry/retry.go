package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Func defines the function signature for a retryable operation.
type Func func(ctx context.Context) error

// Default logger (can be replaced by a custom logger)
var logger = zap.NewNop()

// SetLogger allows setting a custom logger for retry operations.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Execute performs an operation with a retry mechanism.
func Execute(ctx context.Context, cfg *Config, op Func) error {
	// If no retry configuration is provided, just execute the operation
	if cfg == nil || !cfg.Enable {
		return op(ctx)
	}
	// Validate retry configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var lastErr error
	interval := cfg.Interval
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn("Retry attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("wait", interval),
			zap.Error(err))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}

		interval = nextInterval(interval, cfg)
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func nextInterval(current time.Duration, cfg *Config) time.Duration {
	if cfg.Multiplier > 1 {
		current = time.Duration(float64(current) * cfg.Multiplier)
	}
	if cfg.MaxInterval > 0 && current > cfg.MaxInterval {
		current = cfg.MaxInterval
	}
	return current
}
