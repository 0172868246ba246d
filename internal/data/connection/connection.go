package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adgate/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Connections holds the optional data clients of the service
type Connections struct {
	RC     *redis.Client
	RMQ    *amqp.Connection
	KFK    *kafka.Writer
	logger *zap.Logger
	closed bool
	mu     sync.Mutex
}

// New opens the clients enabled in the redis and broker configuration
func New(ctx context.Context, rcfg *config.RedisConfig, bcfg *config.BrokerConfig, logger *zap.Logger) (*Connections, error) {
	c := &Connections{logger: logger.Named("connection")}
	var err error

	if rcfg != nil && rcfg.Enabled {
		c.RC, err = newRedis(ctx, rcfg)
		if err != nil {
			return nil, err
		}
		c.logger.Info("Connected to redis", zap.String("addr", rcfg.Addr))
	}

	if bcfg != nil {
		switch bcfg.Kind {
		case config.BrokerKafka:
			c.KFK, err = newKafka(ctx, &bcfg.Kafka)
			if err == nil {
				c.logger.Info("Connected to kafka", zap.Strings("brokers", bcfg.Kafka.Brokers))
			}
		case config.BrokerRabbitMQ:
			c.RMQ, err = newRabbitMQ(&bcfg.RabbitMQ)
			if err == nil {
				c.logger.Info("Connected to rabbitmq")
			}
		}
		if err != nil {
			return nil, multierr.Append(err, c.Close())
		}
	}

	return c, nil
}

// Close closes all open clients
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var err error
	if c.RC != nil {
		if cerr := c.RC.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("redis close error: %w", cerr))
		}
		c.RC = nil
	}

	if c.RMQ != nil {
		if !c.RMQ.IsClosed() {
			if cerr := c.RMQ.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("rabbitmq close error: %w", cerr))
			}
		}
		c.RMQ = nil
	}

	if c.KFK != nil {
		if cerr := c.KFK.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("kafka close error: %w", cerr))
		}
		c.KFK = nil
	}

	c.closed = true
	return err
}

// Ping checks the clients that support a liveness probe
func (c *Connections) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.RC != nil {
		if perr := c.RC.Ping(ctx).Err(); perr != nil {
			err = multierr.Append(err, fmt.Errorf("redis ping error: %w", perr))
		}
	}
	if c.RMQ != nil && c.RMQ.IsClosed() {
		err = multierr.Append(err, errors.New("rabbitmq connection is closed"))
	}
	return err
}
