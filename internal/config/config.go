package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"adgate/internal/logger"
)

// AppName is used for the env prefix and log naming
var AppName = "adgate"

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Ads      AdsConfig      `mapstructure:"ads"`
	Email    EmailConfig    `mapstructure:"email"`
	Log      logger.Config  `mapstructure:"log"`
}

// ServerConfig represents the server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig represents the API configuration
type APIConfig struct {
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig represents the CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	MaxAge           int      `mapstructure:"max_age"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// RateLimitConfig represents per client request limiting
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load reads an optional .env file, the YAML file at path (when not empty)
// and ADGATE_* environment overrides
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every key so that environment overrides apply
// even when the file omits a section
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"authorization", "x-client-info", "apikey", "content-type", "x-request-id"})
	v.SetDefault("api.cors.max_age", 86400)
	v.SetDefault("api.cors.allow_credentials", false)
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests", 60)
	v.SetDefault("api.rate_limit.window", time.Minute)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/adgate.db")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.query_timeout", 30*time.Second)
	v.SetDefault("database.slow_query_time", time.Second)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.rollback_steps", 0)
	v.SetDefault("database.target_version", 0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.profile_ttl", 30*time.Second)
	v.SetDefault("redis.key_prefix", "adgate:")

	v.SetDefault("broker.kind", BrokerNone)
	v.SetDefault("broker.kafka.brokers", []string{})
	v.SetDefault("broker.kafka.topic", "adgate.events")
	v.SetDefault("broker.rabbitmq.url", "")
	v.SetDefault("broker.rabbitmq.exchange", "adgate.events")
	v.SetDefault("broker.rabbitmq.heartbeat", 10*time.Second)

	defaults := defaultAds()
	v.SetDefault("ads.frequency.max_ads_per_hour", defaults.Frequency.MaxAdsPerHour)
	v.SetDefault("ads.frequency.max_ads_per_day", defaults.Frequency.MaxAdsPerDay)
	v.SetDefault("ads.frequency.min_seconds_between_ads", defaults.Frequency.MinSecondsBetweenAds)
	v.SetDefault("ads.settings_refresh", defaults.SettingsRefresh)
	v.SetDefault("ads.load_delay", defaults.LoadDelay)
	v.SetDefault("ads.failure_rate", defaults.FailureRate)
	v.SetDefault("ads.session_poll_interval", defaults.SessionPollInterval)
	v.SetDefault("ads.trigger_debounce", defaults.TriggerDebounce)
	v.SetDefault("ads.daily_reset_cron", defaults.DailyResetCron)

	v.SetDefault("email.provider", EmailProviderHTTP)
	v.SetDefault("email.from", "noreply@example.com")
	v.SetDefault("email.http.endpoint", "https://api.resend.com/emails")
	v.SetDefault("email.http.api_key", "")
	v.SetDefault("email.http.timeout", 10*time.Second)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.retry.enable", true)
	v.SetDefault("email.retry.max_attempts", 3)
	v.SetDefault("email.retry.interval", time.Second)
	v.SetDefault("email.retry.multiplier", 2.0)
	v.SetDefault("email.retry.max_interval", 10*time.Second)

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}

	if c.API.RateLimit.Enabled && (c.API.RateLimit.Requests <= 0 || c.API.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid API config: rate limit requires positive requests and window")
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("invalid redis config: %w", err)
	}

	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("invalid broker config: %w", err)
	}

	if err := c.Ads.Validate(); err != nil {
		return fmt.Errorf("invalid ads config: %w", err)
	}

	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("invalid email config: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}
