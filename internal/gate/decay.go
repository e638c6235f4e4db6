package gate

import (
	"time"

	"TitanGate/internal/domain/models"
)

// DecayEngine lowers a signal's confidence as it ages unexecuted.
// Decay shapes ordering and priority; TTL expiry stays the hard
// backstop and is checked elsewhere.
type DecayEngine struct {
	rate    float64 // confidence lost per second
	maxHold time.Duration
}

// NewDecayEngine creates a decay engine. rate is confidence lost per
// second of age; a signal older than maxHold is flagged for drop.
func NewDecayEngine(rate float64, maxHold time.Duration) *DecayEngine {
	return &DecayEngine{rate: rate, maxHold: maxHold}
}

// Decay returns the decayed confidence for the given base confidence
// and age. Pure: same inputs, same output.
func (e *DecayEngine) Decay(conf float64, age time.Duration) float64 {
	d := conf - e.rate*age.Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Apply re-evaluates a signal at now, lowering Confidence in place.
// Confidence is always computed from the producer-reported base, so
// repeated application at the same instant is a no-op and the value
// is monotonically non-increasing as the signal ages. Returns true if
// the signal has been held past maxHold and must be dropped.
func (e *DecayEngine) Apply(s *models.Signal, now time.Time) bool {
	age := s.Age(now)
	if age < 0 {
		age = 0
	}
	if d := e.Decay(s.BaseConf, age); d < s.Confidence {
		s.Confidence = d
	}
	return age > e.maxHold
}
