package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	wfm "landreg/internal/workflow/models"
)

// Metrics observes workflow command execution.
type Metrics struct {
	Commands        *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	ExecuteDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_workflow_commands_total",
			Help: "Workflow commands executed, by command and outcome",
		}, []string{"command", "outcome"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_workflow_transitions_total",
			Help: "Transaction status transitions applied",
		}, []string{"from", "to"}),
		ExecuteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landreg_workflow_execute_duration_seconds",
			Help:    "Duration of one workflow command over all its transactions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncCommand(cmd wfm.CommandType, outcome string) {
	m.Commands.WithLabelValues(string(cmd), outcome).Inc()
}

func (m *Metrics) IncTransition(from, to wfm.Status) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ObserveExecute(start time.Time) {
	m.ExecuteDuration.Observe(time.Since(start).Seconds())
}
