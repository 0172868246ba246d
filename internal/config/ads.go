package config

import (
	"fmt"
	"time"

	"adgate/internal/scheduler"
	"adgate/internal/types"
)

// AdsConfig represents ad gating configuration
type AdsConfig struct {
	// Frequency is used until the settings store has been read
	Frequency           types.FrequencySettings `mapstructure:"frequency"`
	SettingsRefresh     time.Duration           `mapstructure:"settings_refresh"`
	LoadDelay           time.Duration           `mapstructure:"load_delay"`
	FailureRate         float64                 `mapstructure:"failure_rate"`
	SessionPollInterval time.Duration           `mapstructure:"session_poll_interval"`
	TriggerDebounce     time.Duration           `mapstructure:"trigger_debounce"`
	// DailyResetCron zeroes every ads_shown_today counter; empty disables it
	DailyResetCron string `mapstructure:"daily_reset_cron"`
}

func defaultAds() AdsConfig {
	return AdsConfig{
		Frequency:           types.DefaultFrequencySettings(),
		SettingsRefresh:     time.Minute,
		LoadDelay:           time.Second,
		FailureRate:         0,
		SessionPollInterval: 60 * time.Second,
		TriggerDebounce:     500 * time.Millisecond,
	}
}

// Validate validates ads configuration
func (c *AdsConfig) Validate() error {
	if err := c.Frequency.Validate(); err != nil {
		return err
	}
	if c.SettingsRefresh < 0 || c.LoadDelay < 0 || c.TriggerDebounce < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if c.SessionPollInterval < time.Second {
		return fmt.Errorf("session_poll_interval must be at least 1s")
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be between 0 and 1")
	}
	if c.DailyResetCron != "" {
		if err := scheduler.ValidateSpec(c.DailyResetCron); err != nil {
			return fmt.Errorf("invalid daily_reset_cron: %w", err)
		}
	}
	return nil
}
