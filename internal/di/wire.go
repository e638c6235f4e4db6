//go:build wireinject
// +build wireinject

package di

import (
	"TitanGate/pkg/config"
	"TitanGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Bus transport
		ProvideBus,
		ProvideSignalStream,
		ProvideOutcomePublisher,

		// Execution collaborator
		ProvideExecutor,

		// Pipeline
		ProvideGatekeeper,
		ProvideIngress,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
