package connection

import (
	"context"
	"fmt"
	"time"

	"adgate/internal/config"

	"github.com/segmentio/kafka-go"
)

// newKafka checks that a broker is reachable and returns a writer for the topic
func newKafka(ctx context.Context, cfg *config.KafkaConfig) (*kafka.Writer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka configuration is nil or empty")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka connection error: %w", err)
	}
	if err := conn.Close(); err != nil {
		return nil, fmt.Errorf("kafka connection error: %w", err)
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, nil
}
