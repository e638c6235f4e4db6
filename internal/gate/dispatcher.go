package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
	applogger "TitanGate/pkg/logger"
)

const outcomePublishTimeout = 2 * time.Second

// Dispatcher runs the bounded worker pool that pulls admitted signals
// off the two-lane queue and invokes the execution collaborator.
type Dispatcher struct {
	queue   *Queue
	ctrl    *Controller
	exec    drepo.Executor
	pub     drepo.OutcomePublisher
	metrics drepo.Metrics
	log     *applogger.Logger

	workers int
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a worker pool of the given size. pub may be
// nil when outcome publishing is disabled.
func NewDispatcher(
	queue *Queue,
	ctrl *Controller,
	exec drepo.Executor,
	pub drepo.OutcomePublisher,
	metrics drepo.Metrics,
	log *applogger.Logger,
	workers int,
	timeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		ctrl:    ctrl,
		exec:    exec,
		pub:     pub,
		metrics: metrics,
		log:     log,
		workers: workers,
		timeout: timeout,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Info("dispatcher started", applogger.Int("workers", d.workers))
}

// Shutdown waits for in-flight dispatches to finish, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		it, err := d.queue.Pop(ctx)
		if err != nil {
			return
		}
		d.dispatch(ctx, it)
		d.metrics.ActiveDispatches(int(d.ctrl.Active()))
	}
}

// dispatch runs one signal through the executor. The admission slot
// is released on every exit path, including panics in the executor.
func (d *Dispatcher) dispatch(ctx context.Context, it *Item) {
	defer it.Token.Release()

	// A panic after the outcome was already counted (e.g. in publish)
	// must not count the dispatch a second time.
	counted := false
	record := func(status string) {
		counted = true
		d.metrics.Executed(status)
	}
	defer func() {
		if r := recover(); r != nil {
			if !counted {
				d.metrics.Executed(models.StatusFailed)
			}
			d.log.Error("dispatch panic",
				applogger.String("signal", it.Signal.ID),
				applogger.Any("panic", r),
			)
		}
	}()

	s := it.Signal
	now := time.Now()

	// TTL is the hard backstop: re-checked at the last moment because
	// queueing delay is not bounded by admission alone.
	if s.Expired(now) {
		counted = true
		d.metrics.Dropped("ttl_dispatch")
		d.log.Warn("signal expired before dispatch",
			applogger.String("signal", s.ID),
			applogger.String("symbol", s.Symbol),
			applogger.Duration("age_ms", s.Age(now)),
		)
		d.publish(ctx, s, models.StatusExpired, "")
		return
	}

	timeout := d.timeout
	if rem := s.Remaining(now); rem < timeout {
		timeout = rem
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	res, err := d.exec.Execute(cctx, s)
	cancel()

	switch {
	case err == nil && res != nil && res.Success:
		record(models.StatusExecuted)
		d.log.Info("signal executed",
			applogger.String("signal", s.ID),
			applogger.String("symbol", s.Symbol),
			applogger.String("side", s.Side),
			applogger.String("strategy", s.Strategy),
			applogger.Bool("fastpass", s.Fastpass),
		)
		d.publish(ctx, s, models.StatusExecuted, res.OrderRef)
	case errors.Is(err, context.DeadlineExceeded):
		record(models.StatusTimeout)
		d.log.Warn("execution timed out",
			applogger.String("signal", s.ID),
			applogger.String("symbol", s.Symbol),
			applogger.Duration("timeout_ms", timeout),
		)
		d.publish(ctx, s, models.StatusTimeout, "")
	default:
		record(models.StatusFailed)
		if err == nil {
			err = errors.New("executor reported failure")
		}
		d.log.Error("execution failed",
			applogger.String("signal", s.ID),
			applogger.String("symbol", s.Symbol),
			applogger.Error(err),
		)
		d.publish(ctx, s, models.StatusFailed, "")
	}
}

func (d *Dispatcher) publish(ctx context.Context, s *models.Signal, status, orderRef string) {
	if d.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, outcomePublishTimeout)
	defer cancel()

	o := &models.Outcome{
		SignalID: s.ID,
		Symbol:   s.Symbol,
		Side:     s.Side,
		Strategy: s.Strategy,
		Status:   status,
		OrderRef: orderRef,
		At:       time.Now(),
	}
	if err := d.pub.Publish(pctx, o); err != nil {
		d.log.Warn("outcome publish failed",
			applogger.String("signal", s.ID),
			applogger.Error(err),
		)
	}
}
