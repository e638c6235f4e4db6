package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"TitanGate/internal/domain/models"
)

func newTestDispatcher(exec *stubExecutor, pub *stubPublisher, m *stubMetrics) (*Dispatcher, *Queue, *Controller) {
	q := NewQueue(16, m)
	c := NewController(16, 1000, time.Second)
	d := NewDispatcher(q, c, exec, pub, m, nopLogger(), 2, 500*time.Millisecond)
	return d, q, c
}

func TestDispatchSuccess(t *testing.T) {
	exec := &stubExecutor{}
	pub := &stubPublisher{}
	m := newStubMetrics()
	d, q, c := newTestDispatcher(exec, pub, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	s := testSignal("s1", time.Minute, time.Now())
	if err := q.Push(&Item{Signal: s, Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.executedCount(models.StatusExecuted) == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })

	outs := pub.published()
	if len(outs) != 1 {
		t.Fatalf("published %d outcomes", len(outs))
	}
	if outs[0].SignalID != "s1" || outs[0].Status != models.StatusExecuted {
		t.Fatalf("outcome %+v", outs[0])
	}
	if outs[0].OrderRef != "ord-s1" {
		t.Fatalf("order ref %q", outs[0].OrderRef)
	}
}

func TestDispatchSkipsExpiredSignal(t *testing.T) {
	exec := &stubExecutor{}
	pub := &stubPublisher{}
	m := newStubMetrics()
	d, q, c := newTestDispatcher(exec, pub, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	// Already past TTL by the time a worker sees it.
	s := testSignal("late", 50*time.Millisecond, time.Now().Add(-time.Second))
	if err := q.Push(&Item{Signal: s, Token: tok}, LaneFast); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.droppedCount("ttl_dispatch") == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })

	if n := exec.callCount(); n != 0 {
		t.Fatalf("executor called %d times for expired signal", n)
	}
	outs := pub.published()
	if len(outs) != 1 || outs[0].Status != models.StatusExpired {
		t.Fatalf("expected one expired outcome, got %+v", outs)
	}
}

func TestDispatchTimeout(t *testing.T) {
	exec := &stubExecutor{delay: 5 * time.Second}
	pub := &stubPublisher{}
	m := newStubMetrics()
	q := NewQueue(16, m)
	c := NewController(16, 1000, time.Second)
	d := NewDispatcher(q, c, exec, pub, m, nopLogger(), 1, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	s := testSignal("slow", time.Minute, time.Now())
	if err := q.Push(&Item{Signal: s, Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return m.executedCount(models.StatusTimeout) == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })

	outs := pub.published()
	if len(outs) != 1 || outs[0].Status != models.StatusTimeout {
		t.Fatalf("expected one timeout outcome, got %+v", outs)
	}
}

func TestDispatchTimeoutCappedByTTL(t *testing.T) {
	exec := &stubExecutor{delay: 5 * time.Second}
	pub := &stubPublisher{}
	m := newStubMetrics()
	q := NewQueue(16, m)
	c := NewController(16, 1000, time.Second)
	// Generous dispatch timeout; the signal's remaining TTL is the
	// binding limit.
	d := NewDispatcher(q, c, exec, pub, m, nopLogger(), 1, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	s := testSignal("near-ttl", 50*time.Millisecond, time.Now())
	if err := q.Push(&Item{Signal: s, Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return m.executedCount(models.StatusTimeout) == 1 })
}

func TestDispatchExecutorError(t *testing.T) {
	exec := &stubExecutor{err: errors.New("broker unavailable")}
	pub := &stubPublisher{}
	m := newStubMetrics()
	d, q, c := newTestDispatcher(exec, pub, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	if err := q.Push(&Item{Signal: testSignal("bad", time.Minute, time.Now()), Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.executedCount(models.StatusFailed) == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })
}

func TestDispatchExecutorPanicReleasesSlot(t *testing.T) {
	exec := &stubExecutor{panics: true}
	m := newStubMetrics()
	d, q, c := newTestDispatcher(exec, nil, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	if err := q.Push(&Item{Signal: testSignal("boom", time.Minute, time.Now()), Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.executedCount(models.StatusFailed) == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })

	// Workers survive the panic and keep dispatching.
	tok2 := mustAdmit(t, c)
	exec2 := testSignal("after", time.Minute, time.Now())
	exec.mu.Lock()
	exec.panics = false
	exec.mu.Unlock()
	if err := q.Push(&Item{Signal: exec2, Token: tok2}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}
	waitFor(t, time.Second, func() bool { return m.executedCount(models.StatusExecuted) == 1 })
}

// panicPublisher simulates a publisher that blows up mid-publish.
type panicPublisher struct{}

func (panicPublisher) Publish(context.Context, *models.Outcome) error { panic("publisher down") }
func (panicPublisher) Close() error                                   { return nil }

func TestDispatchPublishPanicCountsOnce(t *testing.T) {
	exec := &stubExecutor{}
	m := newStubMetrics()
	q := NewQueue(16, m)
	c := NewController(16, 1000, time.Second)
	d := NewDispatcher(q, c, exec, panicPublisher{}, m, nopLogger(), 1, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	tok := mustAdmit(t, c)
	if err := q.Push(&Item{Signal: testSignal("pub-boom", time.Minute, time.Now()), Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.executedCount(models.StatusExecuted) == 1 })
	waitFor(t, time.Second, func() bool { return c.Active() == 0 })

	// The dispatch already counted as executed; the recover path must
	// not count it again as failed.
	if got := m.executedCount(models.StatusFailed); got != 0 {
		t.Fatalf("failed count = %d after publish panic on an executed dispatch", got)
	}
}

func TestDispatcherShutdownDrains(t *testing.T) {
	exec := &stubExecutor{delay: 20 * time.Millisecond}
	m := newStubMetrics()
	d, q, c := newTestDispatcher(exec, nil, m)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	tok := mustAdmit(t, c)
	if err := q.Push(&Item{Signal: testSignal("draining", time.Minute, time.Now()), Token: tok}, LaneNormal); err != nil {
		t.Fatalf("push: %v", err)
	}
	waitFor(t, time.Second, func() bool { return exec.callCount() == 1 })

	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	if err := d.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := c.Active(); got != 0 {
		t.Fatalf("active = %d after shutdown", got)
	}
}
