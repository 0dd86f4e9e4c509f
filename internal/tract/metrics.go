package tract

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes tract rule evaluation.
type Metrics struct {
	PrelationViolations *prometheus.CounterVec
	ChainViolations     prometheus.Counter
	TractLoadDuration   prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		PrelationViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_tract_prelation_violations_total",
			Help: "Prelation violations detected, by policy outcome",
		}, []string{"outcome"}),
		ChainViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_tract_chain_violations_total",
			Help: "Appends rejected for a missing chained act",
		}),
		TractLoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landreg_tract_load_duration_seconds",
			Help:    "Duration of loading a resource tract from the store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncPrelationViolation(outcome string) {
	m.PrelationViolations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncChainViolation() {
	m.ChainViolations.Inc()
}

func (m *Metrics) ObserveTractLoad(start time.Time) {
	m.TractLoadDuration.Observe(time.Since(start).Seconds())
}
