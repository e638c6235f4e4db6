package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	admitted    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	executions  *prometheus.CounterVec
	parseErrors prometheus.Counter
	active      prometheus.Gauge
	queueDepth  *prometheus.GaugeVec
}

// New creates a Prometheus metrics recorder registered on the default
// registerer.
func New() *Recorder {
	return NewWith(nil)
}

// NewWith creates a recorder on a custom registerer (useful for
// testing). A nil registerer uses the process-wide default.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(prometheus.DefaultRegisterer)
	if reg != nil {
		factory = promauto.With(reg)
	}

	return &Recorder{
		admitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titangate_signals_admitted_total",
				Help: "Signals that passed dedup, decay, and admission gates",
			},
			[]string{"lane"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titangate_signals_rejected_total",
				Help: "Signals rejected before dispatch, by reason",
			},
			[]string{"reason"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titangate_signals_dropped_total",
				Help: "Admitted signals dropped before execution, by stage",
			},
			[]string{"stage"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titangate_executions_total",
				Help: "Dispatch attempts by outcome status",
			},
			[]string{"status"},
		),
		parseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "titangate_parse_errors_total",
				Help: "Malformed producer messages dropped at ingress",
			},
		),
		active: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "titangate_active_dispatches",
				Help: "Signals currently holding an admission slot",
			},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "titangate_queue_depth",
				Help: "Admitted signals waiting for a worker, per lane",
			},
			[]string{"lane"},
		),
	}
}

// Admitted records a signal admitted into the given lane.
func (r *Recorder) Admitted(lane string) {
	r.admitted.WithLabelValues(lane).Inc()
}

// Rejected records an admission rejection by reason.
func (r *Recorder) Rejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// Dropped records an admitted signal dropped before execution.
func (r *Recorder) Dropped(stage string) {
	r.dropped.WithLabelValues(stage).Inc()
}

// Executed records a dispatch attempt outcome.
func (r *Recorder) Executed(status string) {
	r.executions.WithLabelValues(status).Inc()
}

// ParseError records a malformed inbound message.
func (r *Recorder) ParseError() {
	r.parseErrors.Inc()
}

// ActiveDispatches sets the in-flight dispatch gauge.
func (r *Recorder) ActiveDispatches(n int) {
	r.active.Set(float64(n))
}

// QueueDepth sets the per-lane queue depth gauge.
func (r *Recorder) QueueDepth(lane string, n int) {
	r.queueDepth.WithLabelValues(lane).Set(float64(n))
}
