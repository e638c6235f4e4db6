package gate

import (
	"context"
	"time"

	drepo "TitanGate/internal/domain/repository"
	applogger "TitanGate/pkg/logger"
)

// Reaper is the background sweep: it prunes stale dedup entries and
// drops queued signals whose TTL elapsed or whose hold time exceeded
// the decay engine's limit.
type Reaper struct {
	index    *Index
	queue    *Queue
	decay    *DecayEngine
	ctrl     *Controller
	metrics  drepo.Metrics
	log      *applogger.Logger
	interval time.Duration
}

// NewReaper creates a reaper sweeping every interval.
func NewReaper(
	index *Index,
	queue *Queue,
	decay *DecayEngine,
	ctrl *Controller,
	metrics drepo.Metrics,
	log *applogger.Logger,
	interval time.Duration,
) *Reaper {
	return &Reaper{
		index:    index,
		queue:    queue,
		decay:    decay,
		ctrl:     ctrl,
		metrics:  metrics,
		log:      log,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(time.Now())
			}
		}
	}()
}

func (r *Reaper) sweep(now time.Time) {
	pruned := r.index.Sweep(now)

	dropped := r.queue.Sweep(func(it *Item) bool {
		s := it.Signal
		if s.Expired(now) {
			r.metrics.Dropped("ttl_queue")
			it.Token.Release()
			return true
		}
		// Re-evaluate decay for anything still waiting; a signal held
		// past the max hold time is dropped even if TTL has not hit.
		if r.decay.Apply(s, now) {
			r.metrics.Dropped("stale_queue")
			it.Token.Release()
			return true
		}
		return false
	})

	if pruned > 0 || dropped > 0 {
		r.log.Debug("reaper sweep",
			applogger.Int("dedup_pruned", pruned),
			applogger.Int("queue_dropped", dropped),
		)
		// Queue drops released admission slots, refresh the gauge.
		r.metrics.ActiveDispatches(int(r.ctrl.Active()))
	}
}
