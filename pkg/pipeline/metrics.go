package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure stages reported by structures_failed_total
const (
	StageCorrect  = "correct"
	StageAppend   = "append"
	StageProgress = "progress"
)

// Metrics holds the pipeline's prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	processed   prometheus.Counter
	failed      *prometheus.CounterVec
	lastIndex   prometheus.Gauge
	datasetSize prometheus.Gauge
	duration    prometheus.Histogram
}

// NewMetrics creates and registers the pipeline collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dftdlabel_structures_processed_total",
			Help: "Structures corrected, appended and checkpointed",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dftdlabel_structures_failed_total",
			Help: "Structures that stopped the run, by stage",
		}, []string{"stage"}),
		lastIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dftdlabel_last_completed_index",
			Help: "Index of the last structure recorded in the progress store, -1 if none",
		}),
		datasetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dftdlabel_dataset_structures",
			Help: "Number of structures in the input dataset",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dftdlabel_correction_duration_seconds",
			Help:    "Time spent computing the dispersion correction of one structure",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	m.lastIndex.Set(-1)
	m.registry.MustRegister(m.processed, m.failed, m.lastIndex, m.datasetSize, m.duration)
	return m
}

// Registry returns the registry holding the pipeline collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
