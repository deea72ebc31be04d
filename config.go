package beanstalk

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/pior/beanstalk/protocol"
)

// Config holds configuration for the beanstalkd client.
type Config struct {
	// Addr is the host:port of the beanstalkd server.
	Addr string

	// DialTimeout bounds connection establishment when Dialer is nil.
	// Zero means no timeout beyond the context passed to Dial.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used to connect.
	// If nil, a net.Dialer with DialTimeout is used.
	Dialer *net.Dialer

	// Logger is used by the client and its connection.
	// If nil, nothing is logged.
	Logger *zap.Logger

	// DecodeBody decodes the YAML bodies of stats and list commands.
	// If nil, protocol.DecodeYAML is used.
	DecodeBody protocol.BodyDecoder

	// ReadBufferSize is the size of a single network read.
	ReadBufferSize int

	// Priority and TTR are used by Put. Lower priorities are more urgent.
	Priority uint32
	TTR      time.Duration

	// NewCircuitBreaker creates a circuit breaker for the server.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker
}

// DefaultConfig returns the configuration of a local beanstalkd server
// with the server's own defaults for new jobs.
func DefaultConfig() Config {
	return Config{
		Addr:        protocol.DefaultAddr,
		DialTimeout: 5 * time.Second,
		DecodeBody:  protocol.DecodeYAML,
		Priority:    protocol.LowestPriority,
		TTR:         60 * time.Second,
	}
}

func (c Config) connectionOptions() ConnectionOptions {
	return ConnectionOptions{
		Logger:         c.Logger,
		DecodeBody:     c.DecodeBody,
		ReadBufferSize: c.ReadBufferSize,
	}
}
