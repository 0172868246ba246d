package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adgate/internal/config"
	"adgate/internal/data/connection"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types
const (
	EventNotificationCreated = "notification.created"
	EventEmailSent           = "email.sent"
	EventTriggerRaised       = "trigger.raised"
)

var (
	ErrRabbitMQNotInitialized = errors.New("rabbitmq connection not initialized")
	ErrKafkaNotInitialized    = errors.New("kafka writer not initialized")
)

// Event is the envelope published for notification and trigger activity
type Event struct {
	Type      string    `json:"event_type"`
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Data      any       `json:"data"`
}

// NewEvent creates an event with a fresh id
func NewEvent(eventType, userID string, data any) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Data:      data,
	}
}

// Publisher fans events out to a message broker
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher creates the publisher for the configured broker kind
func NewPublisher(cfg *config.BrokerConfig, conns *connection.Connections, logger *zap.Logger) (Publisher, error) {
	if cfg == nil {
		return NopPublisher{}, nil
	}
	switch cfg.Kind {
	case "", config.BrokerNone:
		return NopPublisher{}, nil
	case config.BrokerKafka:
		if conns == nil || conns.KFK == nil {
			return nil, ErrKafkaNotInitialized
		}
		return NewKafkaPublisher(conns.KFK, logger), nil
	case config.BrokerRabbitMQ:
		if conns == nil || conns.RMQ == nil {
			return nil, ErrRabbitMQNotInitialized
		}
		ch, err := conns.RMQ.Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
		pub, err := NewRabbitMQPublisher(ch, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported broker: %s", cfg.Kind)
	}
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// messageWriter is the subset of kafka.Writer used by KafkaPublisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events keyed by user id
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates new kafka publisher
func NewKafkaPublisher(w messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger.Named("publisher.kafka")}
}

// Publish writes event to the writer's topic
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if p.writer == nil {
		return ErrKafkaNotInitialized
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}
	p.logger.Debug("Event published", zap.String("type", event.Type), zap.String("id", event.ID))
	return nil
}

// Close is a no-op; the writer belongs to the connection set
func (p *KafkaPublisher) Close() error { return nil }

// amqpChannel is the subset of amqp.Channel used by RabbitMQPublisher
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events to a topic exchange routed by event type
type RabbitMQPublisher struct {
	ch       amqpChannel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQPublisher declares exchange and returns a publisher on ch
func NewRabbitMQPublisher(ch amqpChannel, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if ch == nil {
		return nil, ErrRabbitMQNotInitialized
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQPublisher{ch: ch, exchange: exchange, logger: logger.Named("publisher.rabbitmq")}, nil
}

// Publish sends event with the event type as routing key
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to rabbitmq: %w", err)
	}
	p.logger.Debug("Event published", zap.String("type", event.Type), zap.String("id", event.ID))
	return nil
}

// Close closes the channel
func (p *RabbitMQPublisher) Close() error {
	return p.ch.Close()
}
