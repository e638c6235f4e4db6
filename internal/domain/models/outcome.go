package models

import "time"

// Dispatch outcome statuses.
const (
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusTimeout  = "timeout"
	StatusExpired  = "expired"
)

// ExecResult is the opaque response from the execution collaborator.
type ExecResult struct {
	Success  bool   `json:"success"`
	OrderRef string `json:"order_ref,omitempty"`
}

// Outcome is published back onto the bus after each dispatch attempt.
type Outcome struct {
	SignalID string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Strategy string    `json:"strategy"`
	Status   string    `json:"status"`
	OrderRef string    `json:"order_ref,omitempty"`
	At       time.Time `json:"t"`
}
