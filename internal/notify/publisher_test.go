package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"adgate/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeChannel struct {
	declared  string
	published []amqp.Publishing
	keys      []string
	closed    bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.declared = name + ":" + kind
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zaptest.NewLogger(t))

	event := NewEvent(EventNotificationCreated, "user-1", map[string]any{"title": "hi"})
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("user-1"), msg.Key)
	assert.Equal(t, kafka.Header{Key: "event_type", Value: []byte(EventNotificationCreated)}, msg.Headers[0])

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "user-1", decoded.UserID)

	w.err = errors.New("broker down")
	assert.ErrorContains(t, p.Publish(context.Background(), event), "broker down")
}

func TestRabbitMQPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewRabbitMQPublisher(ch, "adgate.events", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "adgate.events:topic", ch.declared)

	event := NewEvent(EventTriggerRaised, "user-1", nil)
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, ch.published, 1)
	assert.Equal(t, EventTriggerRaised, ch.keys[0])
	assert.Equal(t, event.ID, ch.published[0].MessageId)
	assert.Equal(t, "application/json", ch.published[0].ContentType)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNewPublisher(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p, err := NewPublisher(nil, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	p, err = NewPublisher(&config.BrokerConfig{Kind: config.BrokerNone}, nil, logger)
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), NewEvent("x", "", nil)))

	_, err = NewPublisher(&config.BrokerConfig{Kind: config.BrokerKafka}, nil, logger)
	assert.ErrorIs(t, err, ErrKafkaNotInitialized)

	_, err = NewPublisher(&config.BrokerConfig{Kind: config.BrokerRabbitMQ}, nil, logger)
	assert.ErrorIs(t, err, ErrRabbitMQNotInitialized)

	_, err = NewPublisher(&config.BrokerConfig{Kind: "carrier-pigeon"}, nil, logger)
	assert.Error(t, err)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	closed bool
	block  chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestDispatcherPublishesAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 10, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		assert.True(t, d.Dispatch(NewEvent(EventEmailSent, "u", nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 5, pub.count())
	assert.True(t, pub.closed)
	assert.False(t, d.Dispatch(NewEvent(EventEmailSent, "u", nil)))
	assert.NoError(t, d.Stop(ctx))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	d := NewDispatcher(pub, 1, zaptest.NewLogger(t))

	// first event is taken by the worker and blocks, second fills the queue
	require.True(t, d.Dispatch(NewEvent("a", "", nil)))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Dispatch(NewEvent("b", "", nil)))
	assert.False(t, d.Dispatch(NewEvent("c", "", nil)))

	close(pub.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 2, pub.count())
}
