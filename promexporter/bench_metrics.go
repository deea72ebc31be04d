package promexporter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BenchMetrics holds the metrics of the load generator
type BenchMetrics struct {
	jobsTotal  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	mismatches prometheus.Counter
}

// NewBenchMetrics creates and registers all bench metrics
func NewBenchMetrics(registry *prometheus.Registry) *BenchMetrics {
	m := &BenchMetrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanstalk_bench_operations_total",
				Help: "Total number of bench operations",
			},
			[]string{"op", "status"}, // put/reserve/delete, success/failed
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beanstalk_bench_latency_seconds",
				Help:    "Round trip time of bench operations",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"op"},
		),
		mismatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beanstalk_bench_checksum_mismatches_total",
				Help: "Reserved jobs whose body did not match its checksum",
			},
		),
	}

	registry.MustRegister(m.jobsTotal, m.latency, m.mismatches)

	return m
}

// RecordOperation records an operation result and its latency
func (m *BenchMetrics) RecordOperation(op string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.jobsTotal.WithLabelValues(op, status).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordMismatch records a corrupted job body
func (m *BenchMetrics) RecordMismatch() {
	m.mismatches.Inc()
}
