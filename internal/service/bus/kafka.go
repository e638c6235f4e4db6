package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"

	"github.com/segmentio/kafka-go"
)

// KafkaBus implements SignalStream and OutcomePublisher over Kafka.
// One reader per producer topic, all in the same consumer group;
// outcomes are written to a dedicated topic keyed by signal id.
type KafkaBus struct {
	brokers      []string
	topics       []string
	groupID      string
	outcomeTopic string

	readers   []*kafka.Reader
	writer    *kafka.Writer
	connected atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewKafkaBus creates a Kafka-backed signal bus.
func NewKafkaBus(brokers, topics []string, groupID, outcomeTopic string) *KafkaBus {
	return &KafkaBus{
		brokers:      brokers,
		topics:       topics,
		groupID:      groupID,
		outcomeTopic: outcomeTopic,
		stop:         make(chan struct{}),
	}
}

// Connect creates the readers and the outcome writer.
func (b *KafkaBus) Connect(ctx context.Context) error {
	if len(b.brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if len(b.topics) == 0 {
		return fmt.Errorf("kafka topics are required")
	}

	b.readers = nil
	b.stop = make(chan struct{})
	b.stopOnce = sync.Once{}

	for _, topic := range b.topics {
		b.readers = append(b.readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  b.brokers,
			Topic:    topic,
			GroupID:  b.groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}))
	}

	if b.outcomeTopic != "" {
		b.writer = &kafka.Writer{
			Addr:     kafka.TCP(b.brokers...),
			Topic:    b.outcomeTopic,
			Balancer: &kafka.Hash{},
		}
	}

	b.connected.Store(true)
	return nil
}

// Read streams raw signal payloads from all topics.
func (b *KafkaBus) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, 1024)
	errs := make(chan error, len(b.readers))

	// Capture the current generation; Reconnect replaces both.
	stop := b.stop
	var wg sync.WaitGroup

	for _, r := range b.readers {
		wg.Add(1)
		go func(reader *kafka.Reader) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m, err := reader.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					select {
					case errs <- fmt.Errorf("kafka read %s: %w", reader.Config().Topic, err):
					default:
					}
					continue
				}
				select {
				case out <- &models.RawMessage{Channel: m.Topic, Data: m.Value}:
				case <-ctx.Done():
					return
				}
			}
		}(r)
	}

	go func() {
		wg.Wait()
		close(out)
		close(errs)
	}()

	return out, errs
}

// Reconnect rebuilds the readers. The consumer group resumes from the
// last committed offsets.
func (b *KafkaBus) Reconnect(ctx context.Context) error {
	_ = b.Close()
	time.Sleep(time.Second)
	return b.Connect(ctx)
}

// Publish writes a dispatch outcome to the outcome topic.
func (b *KafkaBus) Publish(ctx context.Context, o *models.Outcome) error {
	if b.writer == nil {
		return nil
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.SignalID),
		Value: payload,
		Time:  time.Now(),
	})
}

// Close stops the readers and the writer.
func (b *KafkaBus) Close() error {
	b.connected.Store(false)
	b.stopOnce.Do(func() { close(b.stop) })
	var firstErr error
	for _, r := range b.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.writer != nil {
		if err := b.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsConnected indicates status.
func (b *KafkaBus) IsConnected() bool { return b.connected.Load() }

var (
	_ drepo.SignalStream     = (*KafkaBus)(nil)
	_ drepo.OutcomePublisher = (*KafkaBus)(nil)
)
