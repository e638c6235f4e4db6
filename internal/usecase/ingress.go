package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
	applogger "TitanGate/pkg/logger"
	"TitanGate/pkg/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// inbound is the wire shape producers publish. Producers are
// heterogeneous; "chaos" and "chaos_level" are accepted as aliases
// and the optional "t" field carries the producer's creation time.
type inbound struct {
	Symbol     string   `json:"symbol" validate:"required"`
	Side       string   `json:"side" validate:"required"`
	Strategy   string   `json:"strategy" validate:"required"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Chaos      *float64 `json:"chaos" validate:"omitempty,gte=0,lte=1"`
	ChaosLevel *float64 `json:"chaos_level" validate:"omitempty,gte=0,lte=1"`
	TTLSeconds int      `json:"ttl_seconds" validate:"gte=0"`
	T          string   `json:"t"`
}

// Ingress subscribes to the producer channels, normalizes payloads
// into the canonical Signal shape, and feeds the gatekeeper.
// Malformed messages are counted and dropped, never retried.
type Ingress struct {
	stream     drepo.SignalStream
	gk         *Gatekeeper
	metrics    drepo.Metrics
	log        *applogger.Logger
	defaultTTL time.Duration
	validate   *validator.Validate
}

// NewIngress creates the ingress normalizer.
func NewIngress(
	stream drepo.SignalStream,
	gk *Gatekeeper,
	metrics drepo.Metrics,
	log *applogger.Logger,
	defaultTTL time.Duration,
) *Ingress {
	return &Ingress{
		stream:     stream,
		gk:         gk,
		metrics:    metrics,
		log:        log,
		defaultTTL: defaultTTL,
		validate:   validator.New(),
	}
}

// Start connects the stream and launches the consume loop.
func (i *Ingress) Start(ctx context.Context) error {
	if err := i.stream.Connect(ctx); err != nil {
		return fmt.Errorf("ingress connect: %w", err)
	}
	msgCh, errCh := i.stream.Read(ctx)
	go i.consume(ctx, msgCh, errCh)
	return nil
}

// Stop closes the stream.
func (i *Ingress) Stop() error {
	return i.stream.Close()
}

// Connected reports whether the signal stream is up.
func (i *Ingress) Connected() bool {
	return i.stream.IsConnected()
}

func (i *Ingress) consume(ctx context.Context, msgCh <-chan *models.RawMessage, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err == nil {
				continue
			}
			i.log.Error("signal stream error", applogger.Error(err))
			for ctx.Err() == nil {
				rerr := i.stream.Reconnect(ctx)
				if rerr == nil {
					break
				}
				// Reconnect paces itself with its own delay.
				i.log.Error("signal stream reconnect failed", applogger.Error(rerr))
			}
			if ctx.Err() != nil {
				return
			}
			// The old channels are closed after a reconnect.
			msgCh, errCh = i.stream.Read(ctx)
		case m := <-msgCh:
			if m == nil {
				continue
			}
			i.handle(ctx, m)
		}
	}
}

func (i *Ingress) handle(ctx context.Context, m *models.RawMessage) {
	s, err := i.Normalize(m.Data, time.Now())
	if err != nil {
		i.metrics.ParseError()
		i.log.Warn("malformed signal dropped",
			applogger.String("channel", m.Channel),
			applogger.Error(err),
		)
		return
	}
	// Rejections are terminal per-signal outcomes, already counted.
	_ = i.gk.Submit(ctx, s)
}

// Normalize converts a raw payload into a canonical Signal, assigning
// id and createdAt. now anchors createdAt when the producer did not
// send its own timestamp.
func (i *Ingress) Normalize(data []byte, now time.Time) (*models.Signal, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal signal: %w", err)
	}
	if err := i.validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("validate signal: %w", err)
	}

	chaos := in.Chaos
	if chaos == nil {
		chaos = in.ChaosLevel
	}
	if chaos == nil {
		return nil, fmt.Errorf("validate signal: chaos level missing")
	}

	ttl := i.defaultTTL
	if in.TTLSeconds > 0 {
		ttl = time.Duration(in.TTLSeconds) * time.Second
	}

	return &models.Signal{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(in.Symbol),
		Side:       strings.ToUpper(in.Side),
		Strategy:   in.Strategy,
		Confidence: in.Confidence,
		BaseConf:   in.Confidence,
		ChaosLevel: *chaos,
		CreatedAt:  util.ParseTimeDefault(in.T, now),
		TTL:        ttl,
	}, nil
}
