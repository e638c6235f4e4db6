package executor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
)

// SimExecutor is a stand-in collaborator for local runs and paper
// trading: it sleeps a random interval and succeeds.
type SimExecutor struct {
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimExecutor creates a simulated executor with the given latency
// range.
func NewSimExecutor(minDelay, maxDelay time.Duration) *SimExecutor {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimExecutor{minDelay: minDelay, maxDelay: maxDelay}
}

// Execute simulates a bounded-latency execution call.
func (e *SimExecutor) Execute(ctx context.Context, s *models.Signal) (*models.ExecResult, error) {
	delay := e.minDelay
	if span := e.maxDelay - e.minDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	return &models.ExecResult{
		Success:  true,
		OrderRef: fmt.Sprintf("sim-%s", s.ID),
	}, nil
}

var _ drepo.Executor = (*SimExecutor)(nil)
