package api

import (
	"TitanGate/internal/usecase"
	xhttp "TitanGate/pkg/http"
	xlogger "TitanGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatsHandler exposes pipeline health and live state for external
// monitoring.
type StatsHandler struct {
	logger  *xlogger.Logger
	gk      *usecase.Gatekeeper
	ingress *usecase.Ingress
}

func NewStatsHandler(logger *xlogger.Logger, gk *usecase.Gatekeeper, ingress *usecase.Ingress) *StatsHandler {
	return &StatsHandler{logger: logger, gk: gk, ingress: ingress}
}

func (h *StatsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/stats", h.Stats)
}

// Health reports liveness; degraded (not dead) when the bus is down.
func (h *StatsHandler) Health(c echo.Context) error {
	if h.ingress != nil && !h.ingress.Connected() {
		return xhttp.ServiceUnavailableResponse(c, map[string]string{"bus": "disconnected"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Stats returns a snapshot of queue depths and in-flight dispatches.
func (h *StatsHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.gk.Snapshot())
}
