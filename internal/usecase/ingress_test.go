package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"TitanGate/internal/domain/models"
	applogger "TitanGate/pkg/logger"
)

// fakeStream delivers canned messages to the ingress under test.
type fakeStream struct {
	msgCh     chan *models.RawMessage
	errCh     chan error
	connected bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		msgCh: make(chan *models.RawMessage, 16),
		errCh: make(chan error, 1),
	}
}

func (f *fakeStream) Connect(context.Context) error { f.connected = true; return nil }
func (f *fakeStream) Read(context.Context) (<-chan *models.RawMessage, <-chan error) {
	return f.msgCh, f.errCh
}
func (f *fakeStream) Reconnect(context.Context) error { return nil }
func (f *fakeStream) Close() error                    { f.connected = false; return nil }
func (f *fakeStream) IsConnected() bool               { return f.connected }

func newTestIngress(m *fakeMetrics) (*Ingress, *fakeStream, *Gatekeeper) {
	gk := newTestGatekeeper(m, gkParams{maxConcurrent: 10, permits: 100})
	st := newFakeStream()
	ing := NewIngress(st, gk, m, applogger.Nop(), 30*time.Second)
	return ing, st, gk
}

func TestNormalizeValidPayload(t *testing.T) {
	ing, _, _ := newTestIngress(newFakeMetrics())
	now := time.Now()

	s, err := ing.Normalize([]byte(`{
		"symbol": "btcusdt",
		"side": "buy",
		"strategy": "momentum",
		"confidence": 0.95,
		"chaos": 0.12,
		"ttl_seconds": 45
	}`), now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if s.ID == "" {
		t.Fatal("id not assigned")
	}
	if s.Symbol != "BTCUSDT" || s.Side != "BUY" {
		t.Fatalf("symbol/side not canonicalized: %s/%s", s.Symbol, s.Side)
	}
	if s.Confidence != 0.95 || s.BaseConf != 0.95 {
		t.Fatalf("confidence %v base %v", s.Confidence, s.BaseConf)
	}
	if s.ChaosLevel != 0.12 {
		t.Fatalf("chaos %v", s.ChaosLevel)
	}
	if s.TTL != 45*time.Second {
		t.Fatalf("ttl %v", s.TTL)
	}
	if !s.CreatedAt.Equal(now) {
		t.Fatalf("createdAt %v, want %v", s.CreatedAt, now)
	}
}

func TestNormalizeChaosLevelAlias(t *testing.T) {
	ing, _, _ := newTestIngress(newFakeMetrics())

	s, err := ing.Normalize([]byte(`{
		"symbol": "ETHUSDT",
		"side": "SELL",
		"strategy": "meanrev",
		"confidence": 0.8,
		"chaos_level": 0.4
	}`), time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s.ChaosLevel != 0.4 {
		t.Fatalf("chaos %v", s.ChaosLevel)
	}
	// No ttl_seconds: the configured default applies.
	if s.TTL != 30*time.Second {
		t.Fatalf("ttl %v", s.TTL)
	}
}

func TestNormalizeProducerTimestamp(t *testing.T) {
	ing, _, _ := newTestIngress(newFakeMetrics())
	now := time.Now()
	produced := now.Add(-3 * time.Second).UTC().Truncate(time.Second)

	s, err := ing.Normalize([]byte(`{
		"symbol": "SOLUSDT",
		"side": "BUY",
		"strategy": "momentum",
		"confidence": 0.7,
		"chaos": 0.2,
		"t": "`+produced.Format(time.RFC3339)+`"
	}`), now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !s.CreatedAt.Equal(produced) {
		t.Fatalf("createdAt %v, want %v", s.CreatedAt, produced)
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	ing, _, _ := newTestIngress(newFakeMetrics())
	now := time.Now()

	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", `{"symbol": `, "unmarshal"},
		{"missing symbol", `{"side":"BUY","strategy":"s","confidence":0.5,"chaos":0.1}`, "validate"},
		{"missing side", `{"symbol":"AAA","strategy":"s","confidence":0.5,"chaos":0.1}`, "validate"},
		{"missing strategy", `{"symbol":"AAA","side":"BUY","confidence":0.5,"chaos":0.1}`, "validate"},
		{"confidence above one", `{"symbol":"AAA","side":"BUY","strategy":"s","confidence":1.5,"chaos":0.1}`, "validate"},
		{"chaos above one", `{"symbol":"AAA","side":"BUY","strategy":"s","confidence":0.5,"chaos":1.5}`, "validate"},
		{"chaos missing", `{"symbol":"AAA","side":"BUY","strategy":"s","confidence":0.5}`, "chaos level missing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ing.Normalize([]byte(tc.payload), now)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestIngressCountsParseErrors(t *testing.T) {
	m := newFakeMetrics()
	ing, _, _ := newTestIngress(m)

	ing.handle(context.Background(), &models.RawMessage{
		Channel: "titan:prod:signals:test",
		Data:    []byte(`not json at all`),
	})

	m.mu.Lock()
	got := m.parseErr
	m.mu.Unlock()
	if got != 1 {
		t.Fatalf("parse errors = %d", got)
	}
}

func TestIngressConsumesStream(t *testing.T) {
	m := newFakeMetrics()
	ing, st, _ := newTestIngress(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ing.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !ing.Connected() {
		t.Fatal("not connected after start")
	}

	st.msgCh <- &models.RawMessage{
		Channel: "titan:prod:signals:alpha",
		Data: []byte(`{
			"symbol": "BTCUSDT",
			"side": "BUY",
			"strategy": "momentum",
			"confidence": 0.99,
			"chaos": 0.05
		}`),
	}

	deadline := time.Now().Add(time.Second)
	for m.admittedCount("fast") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("signal never admitted from stream")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := ing.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ing.Connected() {
		t.Fatal("still connected after stop")
	}
}
