package usecase

import (
	"context"
	"errors"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
	"TitanGate/internal/gate"
	applogger "TitanGate/pkg/logger"
)

// Rejection outcomes surfaced by Submit. These are normal control
// flow for the caller, counted but never escalated.
var (
	ErrDuplicate = errors.New("gatekeeper: duplicate signal within dedup window")
	ErrStale     = errors.New("gatekeeper: signal held past max hold time")
)

// Gatekeeper is the admission pipeline: dedup, decay, lane routing,
// and slot/rate gating in front of the dispatch worker pool.
type Gatekeeper struct {
	index   *gate.Index
	decay   *gate.DecayEngine
	router  *gate.Router
	ctrl    *gate.Controller
	queue   *gate.Queue
	disp    *gate.Dispatcher
	reaper  *gate.Reaper
	metrics drepo.Metrics
	log     *applogger.Logger

	retryOnce  bool
	retryDelay time.Duration
}

// NewGatekeeper assembles the pipeline from its components.
func NewGatekeeper(
	index *gate.Index,
	decay *gate.DecayEngine,
	router *gate.Router,
	ctrl *gate.Controller,
	queue *gate.Queue,
	disp *gate.Dispatcher,
	reaper *gate.Reaper,
	metrics drepo.Metrics,
	log *applogger.Logger,
	retryOnce bool,
	retryDelay time.Duration,
) *Gatekeeper {
	return &Gatekeeper{
		index:      index,
		decay:      decay,
		router:     router,
		ctrl:       ctrl,
		queue:      queue,
		disp:       disp,
		reaper:     reaper,
		metrics:    metrics,
		log:        log,
		retryOnce:  retryOnce,
		retryDelay: retryDelay,
	}
}

// Start launches the rate refill timer, the worker pool, and the
// reaper.
func (g *Gatekeeper) Start(ctx context.Context) {
	g.ctrl.Start(ctx)
	g.disp.Start(ctx)
	g.reaper.Start(ctx)
}

// Shutdown stops the refill timer and waits for in-flight dispatches,
// bounded by ctx.
func (g *Gatekeeper) Shutdown(ctx context.Context) error {
	g.ctrl.Stop()
	return g.disp.Shutdown(ctx)
}

// Submit runs one normalized signal through the gates. A non-nil
// error is the rejection reason; the signal is terminal either way.
func (g *Gatekeeper) Submit(ctx context.Context, s *models.Signal) error {
	now := time.Now()

	fp := gate.FingerprintOf(s.Symbol, s.Side, s.Strategy)
	if !g.index.CheckAndRecord(fp, now) {
		g.metrics.Rejected("duplicate")
		g.log.Warn("duplicate signal blocked",
			applogger.String("signal", s.ID),
			applogger.String("symbol", s.Symbol),
			applogger.String("side", s.Side),
			applogger.String("strategy", s.Strategy),
		)
		return ErrDuplicate
	}

	if g.decay.Apply(s, now) {
		g.metrics.Rejected("stale")
		g.log.Warn("stale signal dropped at ingress",
			applogger.String("signal", s.ID),
			applogger.Duration("age_ms", s.Age(now)),
		)
		return ErrStale
	}

	lane := g.router.Classify(s)

	tok, err := g.ctrl.TryAdmit()
	if err != nil {
		// Normal lane gets one bounded retry before dropping; the
		// fast lane never waits and never bypasses the caps.
		if lane == gate.LaneNormal && g.retryOnce {
			g.scheduleRetry(ctx, s, lane)
			return nil
		}
		g.metrics.Rejected(rejectReason(err))
		g.log.Debug("admission rejected",
			applogger.String("signal", s.ID),
			applogger.String("reason", rejectReason(err)),
			applogger.String("lane", lane.String()),
		)
		return err
	}

	return g.enqueue(s, lane, tok)
}

// scheduleRetry retries admission exactly once after a short delay.
func (g *Gatekeeper) scheduleRetry(ctx context.Context, s *models.Signal, lane gate.Lane) {
	time.AfterFunc(g.retryDelay, func() {
		if ctx.Err() != nil {
			return
		}
		now := time.Now()
		if s.Expired(now) {
			g.metrics.Dropped("ttl_queue")
			return
		}
		if g.decay.Apply(s, now) {
			g.metrics.Rejected("stale")
			return
		}
		tok, err := g.ctrl.TryAdmit()
		if err != nil {
			g.metrics.Rejected(rejectReason(err))
			return
		}
		_ = g.enqueue(s, lane, tok)
	})
}

func (g *Gatekeeper) enqueue(s *models.Signal, lane gate.Lane, tok *gate.Token) error {
	if err := g.queue.Push(&gate.Item{Signal: s, Token: tok}, lane); err != nil {
		tok.Release()
		g.metrics.Rejected("queue_full")
		return err
	}

	g.metrics.Admitted(lane.String())
	g.metrics.ActiveDispatches(int(g.ctrl.Active()))
	g.log.Info("signal admitted",
		applogger.String("signal", s.ID),
		applogger.String("symbol", s.Symbol),
		applogger.String("lane", lane.String()),
		applogger.Float64("confidence", s.Confidence),
	)
	return nil
}

// Stats is a point-in-time snapshot for the admin API.
type Stats struct {
	Active      int64 `json:"active_dispatches"`
	FastDepth   int   `json:"fast_queue_depth"`
	NormalDepth int   `json:"normal_queue_depth"`
	DedupSize   int   `json:"dedup_entries"`
}

// Snapshot reports the live pipeline state.
func (g *Gatekeeper) Snapshot() Stats {
	return Stats{
		Active:      g.ctrl.Active(),
		FastDepth:   g.queue.Depth(gate.LaneFast),
		NormalDepth: g.queue.Depth(gate.LaneNormal),
		DedupSize:   g.index.Len(),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, gate.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, gate.ErrConcurrencyFull):
		return "concurrency_full"
	default:
		return "rejected"
	}
}
