package models

import "time"

// Signal is a proposed trading action waiting for an admit/dispatch decision.
// Identity is (Symbol, Side, Strategy); everything else is advisory.
type Signal struct {
	ID         string
	Symbol     string
	Side       string
	Strategy   string
	Confidence float64 // current, decayed value in [0,1]
	BaseConf   float64 // confidence as reported by the producer
	ChaosLevel float64 // ambient instability at creation, immutable
	CreatedAt  time.Time
	TTL        time.Duration
	Fastpass   bool
}

// Age returns how long the signal has existed.
func (s *Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Expired reports whether the TTL has elapsed. TTL is always measured
// from CreatedAt, not from admission.
func (s *Signal) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > s.TTL
}

// Remaining returns the time left before TTL expiry (may be negative).
func (s *Signal) Remaining(now time.Time) time.Duration {
	return s.TTL - now.Sub(s.CreatedAt)
}
