package gate

import (
	"context"
	"errors"
	"sync"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
)

// ErrQueueFull is returned when a lane is at capacity.
var ErrQueueFull = errors.New("queue: lane full")

// Item is an admitted signal waiting for a worker. The token is the
// admission slot it holds; whoever removes the item from the queue
// owns the release.
type Item struct {
	Signal *models.Signal
	Token  *Token
}

// Queue holds admitted signals in two lanes. FIFO within a lane; the
// fast lane always drains before the normal lane when both are
// non-empty.
type Queue struct {
	mu     sync.Mutex
	fast   []*Item
	normal []*Item

	maxDepth int
	notify   chan struct{}
	metrics  drepo.Metrics
}

// NewQueue creates a two-lane queue with the given per-lane capacity.
func NewQueue(maxDepth int, metrics drepo.Metrics) *Queue {
	return &Queue{
		maxDepth: maxDepth,
		notify:   make(chan struct{}, 1),
		metrics:  metrics,
	}
}

// Push appends an item to the given lane.
func (q *Queue) Push(it *Item, lane Lane) error {
	q.mu.Lock()
	if lane == LaneFast {
		if len(q.fast) >= q.maxDepth {
			q.mu.Unlock()
			return ErrQueueFull
		}
		q.fast = append(q.fast, it)
	} else {
		if len(q.normal) >= q.maxDepth {
			q.mu.Unlock()
			return ErrQueueFull
		}
		q.normal = append(q.normal, it)
	}
	q.reportLocked()
	q.mu.Unlock()

	q.wake()
	return nil
}

// Pop removes the next item, preferring the fast lane. Blocks until
// an item is available or ctx is cancelled.
func (q *Queue) Pop(ctx context.Context) (*Item, error) {
	for {
		q.mu.Lock()
		var it *Item
		if len(q.fast) > 0 {
			it = q.fast[0]
			q.fast = q.fast[1:]
		} else if len(q.normal) > 0 {
			it = q.normal[0]
			q.normal = q.normal[1:]
		}
		remaining := len(q.fast) + len(q.normal)
		if it != nil {
			q.reportLocked()
		}
		q.mu.Unlock()

		if it != nil {
			// Other workers may still have work to pick up.
			if remaining > 0 {
				q.wake()
			}
			return it, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Depth returns the current depth of a lane.
func (q *Queue) Depth(lane Lane) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if lane == LaneFast {
		return len(q.fast)
	}
	return len(q.normal)
}

// Sweep walks both lanes and removes items for which drop returns
// true. The lock is held only per entry check so admission is never
// blocked for the duration of a full scan. Returns the number of
// items removed; drop is responsible for releasing their tokens.
func (q *Queue) Sweep(drop func(*Item) bool) int {
	removed := 0
	removed += q.sweepLane(&q.fast, drop)
	removed += q.sweepLane(&q.normal, drop)
	if removed > 0 {
		q.mu.Lock()
		q.reportLocked()
		q.mu.Unlock()
	}
	return removed
}

func (q *Queue) sweepLane(lane *[]*Item, drop func(*Item) bool) int {
	removed := 0
	for i := 0; ; {
		q.mu.Lock()
		if i >= len(*lane) {
			q.mu.Unlock()
			return removed
		}
		it := (*lane)[i]
		if drop(it) {
			*lane = append((*lane)[:i], (*lane)[i+1:]...)
			removed++
		} else {
			i++
		}
		q.mu.Unlock()
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) reportLocked() {
	if q.metrics != nil {
		q.metrics.QueueDepth(LaneFast.String(), len(q.fast))
		q.metrics.QueueDepth(LaneNormal.String(), len(q.normal))
	}
}
