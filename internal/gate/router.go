package gate

import "TitanGate/internal/domain/models"

// Lane is the queue a classified signal is routed into.
type Lane int

const (
	LaneNormal Lane = iota
	LaneFast
)

func (l Lane) String() string {
	if l == LaneFast {
		return "fast"
	}
	return "normal"
}

// Router decides whether a signal may bypass the normal queue.
type Router struct {
	confidenceThreshold float64
	maxSafeChaos        float64
}

// NewRouter creates a fast-path router with the given thresholds,
// both in [0,1].
func NewRouter(confidenceThreshold, maxSafeChaos float64) *Router {
	return &Router{confidenceThreshold: confidenceThreshold, maxSafeChaos: maxSafeChaos}
}

// Classify returns the lane for a signal and tags it fastpass when it
// qualifies. Fast requires both the confidence and chaos gates; the
// chaos gate is never bypassed.
func (r *Router) Classify(s *models.Signal) Lane {
	s.Fastpass = s.Confidence >= r.confidenceThreshold && s.ChaosLevel <= r.maxSafeChaos
	if s.Fastpass {
		return LaneFast
	}
	return LaneNormal
}
