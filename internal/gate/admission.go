package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Admission rejection outcomes. These are control flow, not failures.
var (
	ErrConcurrencyFull = errors.New("admission: max concurrent dispatches reached")
	ErrRateLimited     = errors.New("admission: no rate permits left in window")
)

// Controller owns the two counters that bound the pipeline: in-flight
// concurrency and per-window throughput. All mutation goes through
// TryAdmit/Release; nothing else touches the counters.
type Controller struct {
	max     int64
	active  atomic.Int64
	permits atomic.Int64

	refill   int64
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewController creates an admission controller with a hard
// concurrency ceiling and refill permits per interval.
func NewController(maxConcurrent int, permitsPerInterval int, interval time.Duration) *Controller {
	c := &Controller{
		max:      int64(maxConcurrent),
		refill:   int64(permitsPerInterval),
		interval: interval,
		stop:     make(chan struct{}),
	}
	c.permits.Store(c.refill)
	return c
}

// Start launches the fixed-window permit refill timer. It returns
// when ctx is cancelled or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.permits.Store(c.refill)
			}
		}
	}()
}

// Stop halts the refill timer.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// TryAdmit attempts to reserve one concurrency slot and one rate
// permit. Non-blocking: callers decide locally what to do on failure.
// On success the returned token must be released exactly once.
func (c *Controller) TryAdmit() (*Token, error) {
	for {
		a := c.active.Load()
		if a >= c.max {
			return nil, ErrConcurrencyFull
		}
		if c.active.CompareAndSwap(a, a+1) {
			break
		}
	}

	for {
		p := c.permits.Load()
		if p <= 0 {
			c.active.Add(-1)
			return nil, ErrRateLimited
		}
		if c.permits.CompareAndSwap(p, p-1) {
			break
		}
	}

	return &Token{c: c}, nil
}

// Active returns the current in-flight dispatch count.
func (c *Controller) Active() int64 {
	return c.active.Load()
}

func (c *Controller) release() {
	if c.active.Add(-1) < 0 {
		panic("admission: release without matching admit")
	}
}

// refillNow resets the window permits. Used by tests instead of
// waiting on the timer.
func (c *Controller) refillNow() {
	c.permits.Store(c.refill)
}

// Token is a single admission slot. Release is idempotent-hostile on
// purpose: releasing twice is a programmer error and panics.
type Token struct {
	c        *Controller
	released atomic.Bool
}

// Release returns the slot to the controller.
func (t *Token) Release() {
	if !t.released.CompareAndSwap(false, true) {
		panic("admission: token released twice")
	}
	t.c.release()
}
