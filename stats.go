package beanstalk

import (
	"io"
	"sync/atomic"

	"github.com/sony/gobreaker/v2"
)

// ConnectionStats contains statistics about a connection.
//
// For Prometheus integration, expose these as:
//   - Counters: Sent, Completed, Rejected, Failed, BytesWritten, BytesRead
//   - Gauge: Pending
type ConnectionStats struct {
	Sent         uint64 // Requests written to the connection
	Completed    uint64 // Requests resolved with a successful response
	Rejected     uint64 // Requests answered with a failure status or an undecodable body
	Failed       uint64 // Requests rejected by a framing violation or a closed connection
	BytesWritten uint64
	BytesRead    uint64

	Pending int // Requests waiting for their response
}

// ClientStats contains statistics about a client.
type ClientStats struct {
	Connection ConnectionStats

	// CircuitBreakerState is StateClosed when no breaker is configured.
	CircuitBreakerState gobreaker.State
}

// connectionStatsCollector provides internal methods for updating connection stats.
// Not exported - connections update their own stats.
type connectionStatsCollector struct {
	stats ConnectionStats
}

func (c *connectionStatsCollector) recordSent(n int) {
	atomic.AddUint64(&c.stats.Sent, uint64(n))
}

func (c *connectionStatsCollector) recordCompleted() {
	atomic.AddUint64(&c.stats.Completed, 1)
}

func (c *connectionStatsCollector) recordRejected() {
	atomic.AddUint64(&c.stats.Rejected, 1)
}

func (c *connectionStatsCollector) recordFailed(n int) {
	atomic.AddUint64(&c.stats.Failed, uint64(n))
}

func (c *connectionStatsCollector) recordRead(n int) {
	atomic.AddUint64(&c.stats.BytesRead, uint64(n))
}

func (c *connectionStatsCollector) snapshot(pending int) ConnectionStats {
	return ConnectionStats{
		Sent:         atomic.LoadUint64(&c.stats.Sent),
		Completed:    atomic.LoadUint64(&c.stats.Completed),
		Rejected:     atomic.LoadUint64(&c.stats.Rejected),
		Failed:       atomic.LoadUint64(&c.stats.Failed),
		BytesWritten: atomic.LoadUint64(&c.stats.BytesWritten),
		BytesRead:    atomic.LoadUint64(&c.stats.BytesRead),
		Pending:      pending,
	}
}

// countingWriter counts the bytes the buffered writer hands to the network.
type countingWriter struct {
	w     io.Writer
	stats *connectionStatsCollector
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	atomic.AddUint64(&cw.stats.stats.BytesWritten, uint64(n))
	return n, err
}
