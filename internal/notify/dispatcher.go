package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueSize is the event buffer of a Dispatcher
const DefaultQueueSize = 100

// Dispatcher publishes events in the background so request paths never wait on the broker
type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
	queue     chan Event
	timeout   time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	once      sync.Once
}

// NewDispatcher creates and starts a dispatcher on publisher
func NewDispatcher(publisher Publisher, queueSize int, logger *zap.Logger) *Dispatcher {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		publisher: publisher,
		logger:    logger.Named("dispatcher"),
		queue:     make(chan Event, queueSize),
		timeout:   5 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}

	d.wg.Add(1)
	go d.process()

	return d
}

// Dispatch enqueues event; it reports false when the queue is full or stopped
func (d *Dispatcher) Dispatch(event Event) bool {
	if d.ctx.Err() != nil {
		return false
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("Event queue full, dropping event",
			zap.String("type", event.Type),
			zap.String("id", event.ID))
		return false
	}
}

func (d *Dispatcher) process() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			d.drain()
			return
		case event := <-d.queue:
			d.publish(event)
		}
	}
}

// drain publishes whatever is still queued at shutdown
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.publish(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Error("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("id", event.ID),
			zap.Error(err))
	}
}

// Stop drains the queue and closes the publisher
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	d.once.Do(func() {
		d.cancel()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for events to be published: %w", ctx.Err())
			return
		}

		if cerr := d.publisher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close publisher: %w", cerr)
		}
	})
	return err
}
