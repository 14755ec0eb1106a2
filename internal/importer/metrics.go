package importer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors for imports.
type Metrics struct {
	Rows          *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	FieldsCreated prometheus.Counter
	Duration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactimport_rows_total",
				Help: "Rows processed by outcome",
			},
			[]string{"outcome"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactimport_imports_total",
				Help: "Import runs by result",
			},
			[]string{"result"},
		),
		FieldsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contactimport_fields_created_total",
				Help: "Custom fields created during imports",
			},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contactimport_import_duration_seconds",
				Help:    "Import run duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3m
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Rows, m.Runs, m.FieldsCreated, m.Duration)
	}
	return m
}

func (m *Metrics) observeStats(created, merged, errors, skipped int) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(outcomeCreated).Add(float64(created))
	m.Rows.WithLabelValues(outcomeMerged).Add(float64(merged))
	m.Rows.WithLabelValues(outcomeError).Add(float64(errors))
	m.Rows.WithLabelValues(outcomeSkipped).Add(float64(skipped))
}

func (m *Metrics) observeRun(result string, seconds float64, fields int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
	m.Duration.Observe(seconds)
	m.FieldsCreated.Add(float64(fields))
}
