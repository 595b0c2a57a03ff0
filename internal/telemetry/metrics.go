package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	uploads    *prometheus.CounterVec
	rows       *prometheus.CounterVec
	compute    prometheus.Histogram
	generation prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mktkpi",
			Name:      "uploads_total",
			Help:      "Uploaded files by file type and outcome.",
		}, []string{"file_type", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mktkpi",
			Name:      "rows_total",
			Help:      "Rows seen by the normalizer by file type and result.",
		}, []string{"file_type", "result"}),
		compute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mktkpi",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing a KPI snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mktkpi",
			Name:      "snapshot_generation",
			Help:      "Generation number of the published KPI snapshot.",
		}),
	}
	reg.MustRegister(m.uploads, m.rows, m.compute, m.generation)
	return m
}

func (m *Metrics) Upload(fileType, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(fileType, outcome).Inc()
}

func (m *Metrics) Rows(fileType string, normalized, discarded int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(fileType, "normalized").Add(float64(normalized))
	m.rows.WithLabelValues(fileType, "discarded").Add(float64(discarded))
}

func (m *Metrics) Compute(d time.Duration) {
	if m == nil {
		return
	}
	m.compute.Observe(d.Seconds())
}

func (m *Metrics) Generation(g uint64) {
	if m == nil {
		return
	}
	m.generation.Set(float64(g))
}
