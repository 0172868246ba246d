package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adgate/internal/config"
	"adgate/internal/types"

	"go.uber.org/zap"
)

// ErrProviderFailure wraps every error returned by an email provider
var ErrProviderFailure = errors.New("email provider failure")

// Provider represents an outbound email transport
type Provider interface {
	// Name returns the provider name used in logs
	Name() string

	// Send delivers msg and returns the provider message id
	Send(ctx context.Context, msg *types.EmailMessage) (string, error)
}

// NewProvider creates the email provider selected by cfg
func NewProvider(cfg *config.EmailConfig, logger *zap.Logger) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("email configuration is nil")
	}
	switch cfg.Provider {
	case config.EmailProviderHTTP:
		return NewHTTPProvider(cfg, logger), nil
	case config.EmailProviderSMTP:
		return NewSMTPProvider(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

// sender returns the explicit sender of msg or the configured default
func sender(msg *types.EmailMessage, fallback string) string {
	if msg.From != "" {
		return msg.From
	}
	return fallback
}

// cleanEmailAddress removes display name and angle brackets
func cleanEmailAddress(addr string) string {
	if idx := strings.LastIndex(addr, "<"); idx >= 0 {
		return strings.Trim(addr[idx:], "<>")
	}
	return strings.TrimSpace(addr)
}

func providerError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderFailure, name, err)
}
