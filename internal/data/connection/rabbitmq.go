package connection

import (
	"fmt"

	"adgate/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// newRabbitMQ creates new RabbitMQ connection
func newRabbitMQ(cfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq configuration is nil or empty")
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: cfg.Heartbeat,
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection error: %w", err)
	}
	return conn, nil
}
