package di

import (
	"fmt"

	drepo "TitanGate/internal/domain/repository"
	"TitanGate/internal/gate"
	"TitanGate/internal/service/bus"
	"TitanGate/internal/service/executor"
	"TitanGate/internal/usecase"
	"TitanGate/pkg/config"
	xhttp "TitanGate/pkg/http"
	applogger "TitanGate/pkg/logger"
	"TitanGate/pkg/metrics"
	"TitanGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideBus creates the configured signal bus transport.
func ProvideBus(cfg *config.Config) (drepo.Bus, error) {
	switch cfg.Bus.Type {
	case "redis":
		return bus.NewRedisBus(
			cfg.Bus.Redis.Addr,
			cfg.Bus.Redis.Password,
			cfg.Bus.Redis.DB,
			cfg.Bus.Redis.Pattern,
			cfg.Bus.Redis.OutcomeChannel,
		), nil
	case "kafka":
		return bus.NewKafkaBus(
			cfg.Bus.Kafka.Brokers,
			cfg.Bus.Kafka.Topics,
			cfg.Bus.Kafka.GroupID,
			cfg.Bus.Kafka.OutcomeTopic,
		), nil
	case "ws":
		return bus.NewWSBus(
			cfg.Bus.WS.URL,
			cfg.Bus.WS.ReconnectDelay,
			cfg.Bus.WS.PingInterval,
		), nil
	default:
		return nil, fmt.Errorf("unknown bus type: %s", cfg.Bus.Type)
	}
}

// ProvideSignalStream exposes the inbound side of the bus.
func ProvideSignalStream(b drepo.Bus) drepo.SignalStream { return b }

// ProvideOutcomePublisher exposes the outbound side of the bus.
func ProvideOutcomePublisher(b drepo.Bus) drepo.OutcomePublisher { return b }

// ProvideExecutor creates the execution collaborator client.
func ProvideExecutor(cfg *config.Config) (drepo.Executor, error) {
	switch cfg.Executor.Type {
	case "http":
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.Executor.Timeout))
		return executor.NewHTTPExecutor(client, cfg.Executor.URL), nil
	case "sim":
		return executor.NewSimExecutor(cfg.Executor.MinDelay, cfg.Executor.MaxDelay), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Executor.Type)
	}
}

// ProvideGatekeeper assembles the admission pipeline.
func ProvideGatekeeper(
	cfg *config.Config,
	m drepo.Metrics,
	log *applogger.Logger,
	exec drepo.Executor,
	pub drepo.OutcomePublisher,
) *usecase.Gatekeeper {
	p := cfg.Pipeline

	index := gate.NewIndex(p.DedupWindow)
	decay := gate.NewDecayEngine(p.DecayRate, p.MaxHoldTime)
	router := gate.NewRouter(p.ConfidenceThreshold, p.MaxSafeChaos)
	ctrl := gate.NewController(p.MaxConcurrent, p.RatePermitsPerInterval, p.Interval)
	queue := gate.NewQueue(p.QueueSize, m)
	disp := gate.NewDispatcher(queue, ctrl, exec, pub, m, log, p.MaxConcurrent, p.DispatchTimeout)
	reaper := gate.NewReaper(index, queue, decay, ctrl, m, log, p.ReapInterval)

	return usecase.NewGatekeeper(index, decay, router, ctrl, queue, disp, reaper, m, log, p.RequeueRetry, p.RetryDelay)
}

// ProvideIngress creates the ingress normalizer.
func ProvideIngress(
	cfg *config.Config,
	stream drepo.SignalStream,
	gk *usecase.Gatekeeper,
	m drepo.Metrics,
	log *applogger.Logger,
) *usecase.Ingress {
	return usecase.NewIngress(stream, gk, m, log, cfg.Pipeline.DefaultTTL)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	ingress *usecase.Ingress,
	gk *usecase.Gatekeeper,
) *server.App {
	return server.New(cfg, log, ingress, gk)
}
