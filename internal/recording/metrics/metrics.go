package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for land record mutations.
type Metrics struct {
	ActsAppended        prometheus.Counter
	ActsRemoved         prometheus.Counter
	RecordsClosed       prometheus.Counter
	RecordsOpened       prometheus.Counter
	SignOperations      *prometheus.CounterVec
	IntegrityViolations prometheus.Counter
	AppendDuration      prometheus.Histogram
	CloseDuration       prometheus.Histogram
}

// New registers the land record metrics.
func New() *Metrics {
	return &Metrics{
		ActsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_recording_acts_appended_total",
			Help: "Total number of recording acts appended to land records",
		}),
		ActsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_recording_acts_removed_total",
			Help: "Total number of recording acts removed from land records",
		}),
		RecordsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_land_records_closed_total",
			Help: "Total number of land records closed",
		}),
		RecordsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_land_records_opened_total",
			Help: "Total number of land records reopened",
		}),
		SignOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_land_record_sign_operations_total",
			Help: "Signature operations on land records by kind",
		}, []string{"operation"}),
		IntegrityViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landreg_integrity_violations_total",
			Help: "Persisted documents whose integrity hash did not match on load",
		}),
		AppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landreg_recording_act_append_duration_seconds",
			Help:    "Duration of appending a recording act, tract checks included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CloseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landreg_land_record_close_duration_seconds",
			Help:    "Duration of closing and sealing a land record",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncActsAppended()        { m.ActsAppended.Inc() }
func (m *Metrics) IncActsRemoved()         { m.ActsRemoved.Inc() }
func (m *Metrics) IncRecordsClosed()       { m.RecordsClosed.Inc() }
func (m *Metrics) IncRecordsOpened()       { m.RecordsOpened.Inc() }
func (m *Metrics) IncIntegrityViolations() { m.IntegrityViolations.Inc() }

func (m *Metrics) IncSignOperation(operation string) {
	m.SignOperations.WithLabelValues(operation).Inc()
}

// ObserveAppend records the duration of an append. Call with time.Now() at
// the start of the operation.
func (m *Metrics) ObserveAppend(start time.Time) {
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveClose(start time.Time) {
	m.CloseDuration.Observe(time.Since(start).Seconds())
}
