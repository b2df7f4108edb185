// Package metrics exports executor activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Andrej220/go-utils/partition"
)

// Prometheus implements partition.MetricsPolicy.
type Prometheus struct {
	BatchesQueued   prometheus.Gauge
	BatchesExecuted prometheus.Counter
	BatchesFailed   prometheus.Counter
	BatchLatency    prometheus.Histogram
}

var _ partition.MetricsPolicy = (*Prometheus)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace, subsystem string) (*Prometheus, error) {
	m := &Prometheus{
		BatchesQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_queued",
			Help:      "Number of batches waiting for a worker",
		}),
		BatchesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_executed_total",
			Help:      "Total number of batches executed, failed or not",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_failed_total",
			Help:      "Total number of batches whose consumer failed",
		}),
		BatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_duration_seconds",
			Help:      "Histogram of consumer time per batch",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{
		m.BatchesQueued,
		m.BatchesExecuted,
		m.BatchesFailed,
		m.BatchLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Prometheus) IncQueued()                   { m.BatchesQueued.Inc() }
func (m *Prometheus) DecQueued()                   { m.BatchesQueued.Dec() }
func (m *Prometheus) IncExecuted()                 { m.BatchesExecuted.Inc() }
func (m *Prometheus) IncFailed()                   { m.BatchesFailed.Inc() }
func (m *Prometheus) ObserveBatch(d time.Duration) { m.BatchLatency.Observe(d.Seconds()) }
