package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// WSBus implements SignalStream over a WebSocket feed for producers
// that push directly instead of going through the broker. Outcomes
// are written back on the same connection.
type WSBus struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	// writeMu serializes all writes: gorilla/websocket allows at most
	// one concurrent writer per connection, and Publish is called from
	// every dispatcher worker.
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
}

// NewWSBus creates a WebSocket-backed signal stream.
func NewWSBus(url string, reconnectDelay, pingInterval time.Duration) *WSBus {
	return &WSBus{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the producer endpoint.
func (b *WSBus) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()
	b.connected.Store(true)
	return nil
}

// write serializes frame writes across Publish and the ping loop.
func (b *WSBus) write(messageType int, data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	return b.conn.WriteMessage(messageType, data)
}

// Read streams raw signal frames and errors.
func (b *WSBus) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, 1024)
	errs := make(chan error, 1)

	b.writeMu.Lock()
	conn := b.conn
	b.writeMu.Unlock()

	// Closed when this connection's read loop exits, so redials do not
	// accumulate ping writers.
	done := make(chan struct{})

	// ping loop
	go func() {
		ticker := time.NewTicker(b.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				_ = b.write(websocket.PingMessage, nil)
			}
		}
	}()

	// read loop
	go func() {
		defer close(out)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("ws conn nil")
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			_, data, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("ws read: %w", err)
				return
			}
			select {
			case out <- &models.RawMessage{Channel: b.url, Data: data}:
			default:
				// drop on backpressure
			}
		}
	}()

	return out, errs
}

// Reconnect closes and redials after the configured delay.
func (b *WSBus) Reconnect(ctx context.Context) error {
	_ = b.Close()
	time.Sleep(b.reconnectDelay)
	return b.Connect(ctx)
}

// Publish writes a dispatch outcome back over the connection.
func (b *WSBus) Publish(ctx context.Context, o *models.Outcome) error {
	if !b.connected.Load() {
		return fmt.Errorf("ws not connected")
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return b.write(websocket.TextMessage, payload)
}

// Close closes the connection.
func (b *WSBus) Close() error {
	b.connected.Store(false)
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (b *WSBus) IsConnected() bool { return b.connected.Load() }

var (
	_ drepo.SignalStream     = (*WSBus)(nil)
	_ drepo.OutcomePublisher = (*WSBus)(nil)
)
