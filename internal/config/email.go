package config

import (
	"fmt"
	"time"

	"adgate/internal/retry"
)

// Email providers
const (
	EmailProviderHTTP = "http"
	EmailProviderSMTP = "smtp"
)

// EmailConfig represents the email relay configuration
type EmailConfig struct {
	Provider string          `mapstructure:"provider"`
	From     string          `mapstructure:"from"`
	HTTP     HTTPEmailConfig `mapstructure:"http"`
	SMTP     SMTPConfig      `mapstructure:"smtp"`
	Retry    retry.Config    `mapstructure:"retry"`
}

// HTTPEmailConfig configures a transactional email API
type HTTPEmailConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPConfig configures direct SMTP delivery
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// Validate validates email configuration
func (c *EmailConfig) Validate() error {
	if c.From == "" {
		return fmt.Errorf("default sender is required")
	}
	switch c.Provider {
	case EmailProviderHTTP:
		if c.HTTP.Endpoint == "" {
			return fmt.Errorf("http endpoint is required")
		}
	case EmailProviderSMTP:
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP server is required")
		}
		if c.SMTP.Port <= 0 {
			return fmt.Errorf("SMTP port must be positive")
		}
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Provider)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}
	return nil
}
