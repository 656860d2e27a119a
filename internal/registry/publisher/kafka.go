// Package publisher fans accepted registry events out to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"trustreg/internal/registry/models"
	"trustreg/pkg/platform/circuit"
)

// ErrBacklogFull is returned when Kafka is unreachable and the backlog is at capacity.
var ErrBacklogFull = errors.New("event backlog full")

const headerEventType = "event_type"

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka publishes events keyed by entity ID, so per-entity order is kept
// within a partition. Events that cannot be produced are held in an ordered
// backlog; once anything is backlogged, later events queue behind it until
// the relay drains it. At most one produce call is in flight at a time and it
// never runs under the lock, so Publish cannot wait on another caller's broker
// round trip.
type Kafka struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger

	retryInterval  time.Duration
	produceTimeout time.Duration
	maxBacklog     int
	wake           chan struct{}

	mu      sync.Mutex
	backlog []models.RegistryEvent
	sending bool
}

type Option func(*Kafka)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) {
		k.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(k *Kafka) {
		k.breaker = b
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(k *Kafka) {
		if d > 0 {
			k.retryInterval = d
		}
	}
}

// WithProduceTimeout caps a single produce call, on top of the caller's deadline.
func WithProduceTimeout(d time.Duration) Option {
	return func(k *Kafka) {
		if d > 0 {
			k.produceTimeout = d
		}
	}
}

func WithMaxBacklog(n int) Option {
	return func(k *Kafka) {
		if n > 0 {
			k.maxBacklog = n
		}
	}
}

func NewKafka(producer Producer, topic string, opts ...Option) *Kafka {
	k := &Kafka{
		producer:       producer,
		topic:          topic,
		breaker:        circuit.New("kafka-publisher", circuit.WithFailureThreshold(3)),
		logger:         slog.Default(),
		retryInterval:  2 * time.Second,
		produceTimeout: 10 * time.Second,
		maxBacklog:     10_000,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Publish produces evt directly when nothing is ahead of it. Otherwise, or
// when the produce fails, evt goes to the backlog for the relay.
func (k *Kafka) Publish(ctx context.Context, evt models.RegistryEvent) error {
	k.mu.Lock()
	if k.sending || len(k.backlog) > 0 || k.breaker.IsOpen() {
		defer k.mu.Unlock()
		return k.enqueue(evt)
	}
	k.sending = true
	k.mu.Unlock()

	err := k.produce(ctx, evt)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.sending = false
	if err != nil {
		k.recordFailure(ctx, err)
		// anything queued meanwhile was published after evt
		return k.enqueueFront(evt)
	}
	k.recordSuccess(ctx)
	k.nudge()
	return nil
}

// Backlog returns the number of events waiting for the relay.
func (k *Kafka) Backlog() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.backlog)
}

// Flush produces backlogged events in order, stopping at the first failure.
// It returns immediately when another produce is in flight.
func (k *Kafka) Flush(ctx context.Context) error {
	k.mu.Lock()
	if k.sending {
		k.mu.Unlock()
		return nil
	}
	k.sending = true
	defer func() {
		k.mu.Lock()
		k.sending = false
		k.mu.Unlock()
	}()

	for len(k.backlog) > 0 {
		head := k.backlog[0]
		k.mu.Unlock()

		err := k.produce(ctx, head)

		k.mu.Lock()
		if err != nil {
			k.recordFailure(ctx, err)
			k.mu.Unlock()
			return err
		}
		k.recordSuccess(ctx)
		// only the sender removes from the front, so head is still backlog[0]
		k.backlog[0] = models.RegistryEvent{}
		k.backlog = k.backlog[1:]
	}
	k.mu.Unlock()
	return nil
}

// Run drains the backlog every retry interval, or sooner when an event was
// queued behind a successful produce, until ctx is done.
func (k *Kafka) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-k.wake:
		}
		if k.Backlog() == 0 {
			continue
		}
		if err := k.Flush(ctx); err != nil && ctx.Err() == nil {
			k.logger.WarnContext(ctx, "event relay flush failed",
				"error", err,
				"backlog", k.Backlog(),
			)
		}
	}
}

func (k *Kafka) produce(ctx context.Context, evt models.RegistryEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal registry event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(evt.EntityID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(evt.Type)},
		},
		Timestamp: evt.OccurredAt,
	}
	ctx, cancel := context.WithTimeout(ctx, k.produceTimeout)
	defer cancel()
	return k.producer.ProduceSync(ctx, record).FirstErr()
}

// enqueue and enqueueFront must be called with k.mu held.
func (k *Kafka) enqueue(evt models.RegistryEvent) error {
	if len(k.backlog) >= k.maxBacklog {
		return fmt.Errorf("event %s at height %d: %w", evt.Type, evt.Height, ErrBacklogFull)
	}
	k.backlog = append(k.backlog, evt)
	return nil
}

func (k *Kafka) enqueueFront(evt models.RegistryEvent) error {
	if len(k.backlog) >= k.maxBacklog {
		return fmt.Errorf("event %s at height %d: %w", evt.Type, evt.Height, ErrBacklogFull)
	}
	k.backlog = append([]models.RegistryEvent{evt}, k.backlog...)
	return nil
}

// nudge wakes the relay without blocking.
func (k *Kafka) nudge() {
	if len(k.backlog) == 0 {
		return
	}
	select {
	case k.wake <- struct{}{}:
	default:
	}
}

func (k *Kafka) recordFailure(ctx context.Context, err error) {
	if _, change := k.breaker.RecordFailure(); change.Opened {
		k.logger.WarnContext(ctx, "kafka circuit opened, backlogging events",
			"breaker", k.breaker.Name(),
			"error", err,
		)
	}
}

func (k *Kafka) recordSuccess(ctx context.Context) {
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "kafka circuit closed",
			"breaker", k.breaker.Name(),
		)
	}
}
