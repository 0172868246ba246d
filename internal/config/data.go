package config

import (
	"fmt"
	"time"
)

// Broker kinds
const (
	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// RedisConfig configures the optional profile cache
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ProfileTTL   time.Duration `mapstructure:"profile_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// Validate validates redis configuration
func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.ProfileTTL <= 0 {
		return fmt.Errorf("profile_ttl must be positive")
	}
	return nil
}

// BrokerConfig selects where notification and trigger events are published
type BrokerConfig struct {
	Kind     string         `mapstructure:"kind"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// KafkaConfig represents kafka producer configuration
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RabbitMQConfig represents rabbitmq publisher configuration
type RabbitMQConfig struct {
	URL       string        `mapstructure:"url"`
	Exchange  string        `mapstructure:"exchange"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// Validate validates broker configuration
func (c *BrokerConfig) Validate() error {
	switch c.Kind {
	case "", BrokerNone:
	case BrokerKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("at least one kafka broker is required")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required")
		}
	case BrokerRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("rabbitmq url is required")
		}
		if c.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange is required")
		}
	default:
		return fmt.Errorf("unsupported broker: %s", c.Kind)
	}
	return nil
}
