package promexporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/beanstalk"
)

// StatsSource is implemented by *beanstalk.Client.
type StatsSource interface {
	Stats() beanstalk.ClientStats
}

// Collector exposes client statistics as Prometheus metrics.
// Values are read from the client on every scrape.
type Collector struct {
	source StatsSource

	requests     *prometheus.Desc
	pending      *prometheus.Desc
	bytes        *prometheus.Desc
	circuitState *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source. server labels every metric.
func NewCollector(source StatsSource, server string) *Collector {
	labels := prometheus.Labels{"server": server}

	return &Collector{
		source: source,
		requests: prometheus.NewDesc(
			"beanstalk_requests_total",
			"Requests by outcome (sent, completed, rejected, failed)",
			[]string{"outcome"}, labels,
		),
		pending: prometheus.NewDesc(
			"beanstalk_requests_pending",
			"Requests waiting for their response",
			nil, labels,
		),
		bytes: prometheus.NewDesc(
			"beanstalk_bytes_total",
			"Bytes transferred on the connection",
			[]string{"direction"}, labels, // written, read
		),
		circuitState: prometheus.NewDesc(
			"beanstalk_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open)",
			nil, labels,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.pending
	ch <- c.bytes
	ch <- c.circuitState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	conn := stats.Connection

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(conn.Sent), "sent")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(conn.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(conn.Rejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(conn.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(conn.Pending))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(conn.BytesWritten), "written")
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(conn.BytesRead), "read")
	ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(stats.CircuitBreakerState))
}

func circuitStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
