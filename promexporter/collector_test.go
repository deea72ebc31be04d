package promexporter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/pior/beanstalk"
)

type staticStats beanstalk.ClientStats

func (s staticStats) Stats() beanstalk.ClientStats {
	return beanstalk.ClientStats(s)
}

func TestCollector(t *testing.T) {
	source := staticStats{
		Connection: beanstalk.ConnectionStats{
			Sent:         10,
			Completed:    7,
			Rejected:     2,
			Failed:       1,
			BytesWritten: 300,
			BytesRead:    200,
			Pending:      3,
		},
		CircuitBreakerState: gobreaker.StateOpen,
	}

	collector := NewCollector(source, "127.0.0.1:11300")
	require.Equal(t, 8, testutil.CollectAndCount(collector))

	expected := `
# HELP beanstalk_requests_total Requests by outcome (sent, completed, rejected, failed)
# TYPE beanstalk_requests_total counter
beanstalk_requests_total{outcome="completed",server="127.0.0.1:11300"} 7
beanstalk_requests_total{outcome="failed",server="127.0.0.1:11300"} 1
beanstalk_requests_total{outcome="rejected",server="127.0.0.1:11300"} 2
beanstalk_requests_total{outcome="sent",server="127.0.0.1:11300"} 10
# HELP beanstalk_requests_pending Requests waiting for their response
# TYPE beanstalk_requests_pending gauge
beanstalk_requests_pending{server="127.0.0.1:11300"} 3
# HELP beanstalk_circuit_breaker_state Circuit breaker state (0=closed, 1=half-open, 2=open)
# TYPE beanstalk_circuit_breaker_state gauge
beanstalk_circuit_breaker_state{server="127.0.0.1:11300"} 2
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"beanstalk_requests_total", "beanstalk_requests_pending", "beanstalk_circuit_breaker_state")
	require.NoError(t, err)
}

func TestExporter(t *testing.T) {
	exporter := NewExporter()
	require.NoError(t, exporter.Register(staticStats{}, "a:1"))

	exporter.BenchMetrics().RecordOperation("put", true, time.Millisecond)
	exporter.BenchMetrics().RecordOperation("put", false, time.Millisecond)
	exporter.BenchMetrics().RecordMismatch()

	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := testutil.GatherAndCount(exporter.Registry(), "beanstalk_bench_operations_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.Equal(t, float64(1), testutil.ToFloat64(exporter.bench.mismatches))
}
