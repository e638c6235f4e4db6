package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements SignalStream and OutcomePublisher over Redis
// pub/sub. Producers publish onto channels matching a pattern
// (one channel per producer); outcomes go to a single channel read by
// the orchestrator.
type RedisBus struct {
	addr     string
	password string
	db       int
	pattern  string
	outcome  string

	client    *redis.Client
	pubsub    *redis.PubSub
	connected atomic.Bool
}

// NewRedisBus creates a Redis-backed signal bus.
func NewRedisBus(addr, password string, db int, pattern, outcomeChannel string) *RedisBus {
	return &RedisBus{
		addr:     addr,
		password: password,
		db:       db,
		pattern:  pattern,
		outcome:  outcomeChannel,
	}
}

// Connect dials Redis and subscribes to the producer channel pattern.
func (b *RedisBus) Connect(ctx context.Context) error {
	b.client = redis.NewClient(&redis.Options{
		Addr:     b.addr,
		Password: b.password,
		DB:       b.db,
	})
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	b.pubsub = b.client.PSubscribe(ctx, b.pattern)
	// Force the subscription to be established before reading.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.pattern, err)
	}
	b.connected.Store(true)
	return nil
}

// Read streams raw signal payloads and errors.
func (b *RedisBus) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, 1024)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		ch := b.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					errs <- fmt.Errorf("redis subscription closed")
					return
				}
				select {
				case out <- &models.RawMessage{Channel: msg.Channel, Data: []byte(msg.Payload)}:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return out, errs
}

// Reconnect re-establishes the connection and subscription.
func (b *RedisBus) Reconnect(ctx context.Context) error {
	_ = b.Close()
	time.Sleep(time.Second)
	return b.Connect(ctx)
}

// Publish sends a dispatch outcome to the orchestrator channel.
func (b *RedisBus) Publish(ctx context.Context, o *models.Outcome) error {
	if b.client == nil {
		return fmt.Errorf("redis not connected")
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := b.client.Publish(ctx, b.outcome, payload).Err(); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// Close tears down the subscription and connection.
func (b *RedisBus) Close() error {
	b.connected.Store(false)
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// IsConnected indicates status.
func (b *RedisBus) IsConnected() bool { return b.connected.Load() }

var (
	_ drepo.SignalStream     = (*RedisBus)(nil)
	_ drepo.OutcomePublisher = (*RedisBus)(nil)
)
