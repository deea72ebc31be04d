package beanstalk

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/beanstalk/protocol"
)

// CircuitBreaker guards the requests of a client.
type CircuitBreaker = *gobreaker.CircuitBreaker[*protocol.Frame]

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
//
// Only errors that break the connection count as failures: a server
// answering NOT_FOUND or TIMED_OUT is healthy, and so is a caller giving up
// on a blocking reserve.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:         serverAddr,
			MaxRequests:  maxRequests,
			Interval:     interval,
			Timeout:      timeout,
			IsSuccessful: isHealthy,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*protocol.Frame](settings)
	}
}

// isHealthy reports whether err leaves the server in good standing.
func isHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !protocol.ShouldCloseConnection(err)
}
