package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 6, cfg.Ads.Frequency.MaxAdsPerHour)
	assert.Equal(t, 50, cfg.Ads.Frequency.MaxAdsPerDay)
	assert.Equal(t, 0, cfg.Ads.Frequency.MinSecondsBetweenAds)
	assert.Equal(t, 60*time.Second, cfg.Ads.SessionPollInterval)
	assert.Empty(t, cfg.Ads.DailyResetCron)
	assert.Equal(t, BrokerNone, cfg.Broker.Kind)
	assert.Equal(t, EmailProviderHTTP, cfg.Email.Provider)
	assert.Contains(t, cfg.API.CORS.AllowedHeaders, "content-type")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "adgate.yaml", `
server:
  address: ":9090"
database:
  driver: postgres
  dsn: postgres://localhost/adgate
ads:
  frequency:
    max_ads_per_hour: 3
    max_ads_per_day: 20
    min_seconds_between_ads: 30
  daily_reset_cron: "0 0 0 * * *"
broker:
  kind: kafka
  kafka:
    brokers: ["localhost:9092"]
email:
  provider: smtp
  smtp:
    host: smtp.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Ads.Frequency.MaxAdsPerHour)
	assert.Equal(t, 30, cfg.Ads.Frequency.MinSecondsBetweenAds)
	assert.Equal(t, "0 0 0 * * *", cfg.Ads.DailyResetCron)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "adgate.events", cfg.Broker.Kafka.Topic)
	assert.Equal(t, 587, cfg.Email.SMTP.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADGATE_DATABASE_DRIVER", "mysql")
	t.Setenv("ADGATE_DATABASE_DSN", "user:pass@tcp(localhost:3306)/adgate")
	t.Setenv("ADGATE_ADS_FREQUENCY_MAX_ADS_PER_HOUR", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Ads.Frequency.MaxAdsPerHour)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ADGATE_TEST_DOTENV=from-file\n")
	t.Setenv("ADGATE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("ADGATE_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("ADGATE_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unsupported database driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "DSN is required"},
		{"zero hourly cap", func(c *Config) { c.Ads.Frequency.MaxAdsPerHour = 0 }, "max_ads_per_hour"},
		{"bad cron", func(c *Config) { c.Ads.DailyResetCron = "every day" }, "daily_reset_cron"},
		{"failure rate", func(c *Config) { c.Ads.FailureRate = 1.5 }, "failure_rate"},
		{"kafka without brokers", func(c *Config) { c.Broker.Kind = BrokerKafka }, "kafka broker"},
		{"rabbitmq without url", func(c *Config) { c.Broker.Kind = BrokerRabbitMQ }, "rabbitmq url"},
		{"unknown broker", func(c *Config) { c.Broker.Kind = "nats" }, "unsupported broker"},
		{"smtp without host", func(c *Config) { c.Email.Provider = EmailProviderSMTP }, "SMTP server"},
		{"redis without ttl", func(c *Config) { c.Redis.Enabled = true; c.Redis.ProfileTTL = 0 }, "profile_ttl"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"rate limit without window", func(c *Config) { c.API.RateLimit.Enabled = true; c.API.RateLimit.Window = 0 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
