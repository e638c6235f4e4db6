package repository

import (
	"context"

	"TitanGate/internal/domain/models"
)

// SignalStream is the inbound side of the pub/sub bus: N producer
// channels delivering raw signal payloads.
type SignalStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Bus is a transport that carries both directions: inbound signals
// and outbound dispatch outcomes.
type Bus interface {
	SignalStream
	OutcomePublisher
}

// OutcomePublisher pushes dispatch outcomes back onto the bus.
// Fire-and-forget: a publish failure never blocks the pipeline.
type OutcomePublisher interface {
	Publish(ctx context.Context, o *models.Outcome) error
	Close() error
}

// Executor is the out-of-scope execution collaborator. The pipeline
// treats the call as opaque and never retries it.
type Executor interface {
	Execute(ctx context.Context, s *models.Signal) (*models.ExecResult, error)
}

// Metrics is the observability surface of the pipeline.
type Metrics interface {
	Admitted(lane string)
	Rejected(reason string)
	Dropped(stage string)
	Executed(status string)
	ParseError()
	ActiveDispatches(n int)
	QueueDepth(lane string, n int)
}
