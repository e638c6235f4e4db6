package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"TitanGate/internal/domain/models"
	applogger "TitanGate/pkg/logger"
)

// stubMetrics counts every recorder call so tests can assert on the
// exact labels the pipeline emits.
type stubMetrics struct {
	mu       sync.Mutex
	admitted map[string]int
	rejected map[string]int
	dropped  map[string]int
	executed map[string]int
	parseErr int
	active   int
	depth    map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{
		admitted: make(map[string]int),
		rejected: make(map[string]int),
		dropped:  make(map[string]int),
		executed: make(map[string]int),
		depth:    make(map[string]int),
	}
}

func (m *stubMetrics) Admitted(lane string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admitted[lane]++
}

func (m *stubMetrics) Rejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *stubMetrics) Dropped(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[stage]++
}

func (m *stubMetrics) Executed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed[status]++
}

func (m *stubMetrics) ParseError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseErr++
}

func (m *stubMetrics) ActiveDispatches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *stubMetrics) QueueDepth(lane string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth[lane] = n
}

func (m *stubMetrics) droppedCount(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[stage]
}

func (m *stubMetrics) executedCount(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed[status]
}

// stubExecutor scripts one executor behavior per test.
type stubExecutor struct {
	mu     sync.Mutex
	calls  int
	delay  time.Duration
	err    error
	result *models.ExecResult
	panics bool
}

func (e *stubExecutor) Execute(ctx context.Context, s *models.Signal) (*models.ExecResult, error) {
	e.mu.Lock()
	e.calls++
	panics, delay, scriptedErr, scriptedRes := e.panics, e.delay, e.err, e.result
	e.mu.Unlock()

	if panics {
		panic("scripted executor panic")
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if scriptedErr != nil {
		return nil, scriptedErr
	}
	if scriptedRes != nil {
		return scriptedRes, nil
	}
	return &models.ExecResult{Success: true, OrderRef: "ord-" + s.ID}, nil
}

func (e *stubExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stubPublisher records every published outcome.
type stubPublisher struct {
	mu       sync.Mutex
	outcomes []*models.Outcome
}

func (p *stubPublisher) Publish(_ context.Context, o *models.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) published() []*models.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Outcome, len(p.outcomes))
	copy(out, p.outcomes)
	return out
}

func testSignal(id string, ttl time.Duration, createdAt time.Time) *models.Signal {
	return &models.Signal{
		ID:         id,
		Symbol:     "BTCUSDT",
		Side:       "BUY",
		Strategy:   "momentum",
		Confidence: 0.9,
		BaseConf:   0.9,
		ChaosLevel: 0.1,
		CreatedAt:  createdAt,
		TTL:        ttl,
	}
}

func mustAdmit(t *testing.T, c *Controller) *Token {
	t.Helper()
	tok, err := c.TryAdmit()
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	return tok
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func nopLogger() *applogger.Logger { return applogger.Nop() }
