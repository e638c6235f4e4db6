package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TitanGate/internal/handler/api"
	"TitanGate/internal/usecase"
	"TitanGate/pkg/config"
	xhttp "TitanGate/pkg/http"
	applogger "TitanGate/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	ingress    *usecase.Ingress
	gk         *usecase.Gatekeeper
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	ingress *usecase.Ingress,
	gk *usecase.Gatekeeper,
) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		ingress: ingress,
		gk:      gk,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := api.NewStatsHandler(a.log, a.gk, a.ingress)
	a.httpServer = xhttp.NewServer(handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the pipeline before ingress so no signal finds the gates
	// down.
	a.gk.Start(ctx)
	if err := a.ingress.Start(ctx); err != nil {
		return err
	}
	a.log.Info("ingress started", applogger.String("bus", a.cfg.Bus.Type))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx, cancel)
}

// shutdown gracefully stops all services: ingress first so nothing
// new is admitted, then the worker pool drains, then HTTP.
func (a *App) shutdown(ctx context.Context, cancel context.CancelFunc) error {
	if err := a.ingress.Stop(); err != nil {
		a.log.Warn("ingress stop error", applogger.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer drainCancel()

	cancel()
	if err := a.gk.Shutdown(drainCtx); err != nil {
		a.log.Warn("pipeline drain error", applogger.Error(err))
	}

	shutdownCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
