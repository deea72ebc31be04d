package beanstalk

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/pior/beanstalk/protocol"
)

// Job is a job returned by reserve and peek commands.
type Job struct {
	ID   uint64
	Body []byte
}

// PutOptions are the per-job settings of a put.
type PutOptions struct {
	Priority uint32
	Delay    time.Duration
	TTR      time.Duration
}

// Client is a beanstalkd client over a single pipelined connection.
//
// Every method sends one command and waits for its response. Methods are
// safe for concurrent use: concurrent calls are pipelined on the connection.
// Note that beanstalkd keeps the used and watched tubes per connection, so
// Use and Watch affect every caller of the client.
type Client struct {
	conn           *Connection
	config         Config
	circuitBreaker CircuitBreaker // nil if not configured
	logger         *zap.Logger
}

// NewClient connects to the server at config.Addr.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if config.Addr == "" {
		config.Addr = protocol.DefaultAddr
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: config.DialTimeout}
	}

	netConn, err := dialer.DialContext(ctx, "tcp", config.Addr)
	if err != nil {
		return nil, &protocol.ConnectionError{Op: "dial", Err: err}
	}

	return NewClientFromConn(netConn, config), nil
}

// NewClientFromConn creates a client over an established connection.
func NewClientFromConn(netConn net.Conn, config Config) *Client {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		conn:   NewConnection(netConn, config.connectionOptions()),
		config: config,
		logger: logger,
	}

	if config.NewCircuitBreaker != nil {
		addr := config.Addr
		if addr == "" {
			addr = netConn.RemoteAddr().String()
		}
		c.circuitBreaker = config.NewCircuitBreaker(addr)
	}

	return c
}

// Close closes the connection. Pending requests are rejected.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Connection returns the underlying connection.
func (c *Client) Connection() *Connection {
	return c.conn
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Send sends cmd without waiting for the response.
// The circuit breaker is not consulted.
func (c *Client) Send(cmd protocol.Command) *Request {
	return c.conn.Send(cmd)
}

// Do sends cmd and waits for its response.
//
// A protocol-level failure returns the frame along with a
// protocol.StatusError. If a circuit breaker is configured, the request is
// wrapped with it.
func (c *Client) Do(ctx context.Context, cmd protocol.Command) (*protocol.Frame, error) {
	if c.circuitBreaker != nil {
		var frame *protocol.Frame
		_, err := c.circuitBreaker.Execute(func() (*protocol.Frame, error) {
			var err error
			frame, err = c.do(ctx, cmd)
			return frame, err
		})
		return frame, err
	}

	return c.do(ctx, cmd)
}

func (c *Client) do(ctx context.Context, cmd protocol.Command) (*protocol.Frame, error) {
	frame, err := c.conn.Send(cmd).Wait(ctx)
	if err != nil && protocol.ShouldCloseConnection(err) {
		c.logger.Debug("request failed", zap.Stringer("command", cmd), zap.Error(err))
	}
	return frame, err
}

// Stats returns a snapshot of the client statistics.
func (c *Client) Stats() ClientStats {
	s := ClientStats{
		Connection:          c.conn.Stats(),
		CircuitBreakerState: gobreaker.StateClosed,
	}
	if c.circuitBreaker != nil {
		s.CircuitBreakerState = c.circuitBreaker.State()
	}
	return s
}

// Use selects the tube new jobs are put into.
func (c *Client) Use(ctx context.Context, tube string) (string, error) {
	if err := protocol.ValidateTubeName(tube); err != nil {
		return "", err
	}
	frame, err := c.Do(ctx, protocol.Use.Command(tube))
	if err != nil {
		return "", err
	}
	return frame.Arg(0), nil
}

// Put inserts a job into the used tube, with the configured priority and TTR.
func (c *Client) Put(ctx context.Context, body []byte) (uint64, error) {
	return c.PutWithOptions(ctx, body, PutOptions{
		Priority: c.config.Priority,
		TTR:      c.config.TTR,
	})
}

// PutWithOptions inserts a job into the used tube.
// A job put while the server is out of memory is buried, and ErrBuried is returned.
func (c *Client) PutWithOptions(ctx context.Context, body []byte, opts PutOptions) (uint64, error) {
	cmd := protocol.Put.CommandWithPayload(body,
		formatUint(uint64(opts.Priority)),
		formatSeconds(opts.Delay),
		formatSeconds(opts.TTR),
	)
	frame, err := c.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return parseID(frame.Arg(0))
}

// Watch adds tube to the watch list and returns the number of watched tubes.
func (c *Client) Watch(ctx context.Context, tube string) (int, error) {
	return c.tubeCount(ctx, protocol.Watch, tube)
}

// Ignore removes tube from the watch list and returns the number of watched
// tubes. Ignoring the last watched tube fails with ErrNotIgnored.
func (c *Client) Ignore(ctx context.Context, tube string) (int, error) {
	return c.tubeCount(ctx, protocol.Ignore, tube)
}

func (c *Client) tubeCount(ctx context.Context, d protocol.Descriptor, tube string) (int, error) {
	if err := protocol.ValidateTubeName(tube); err != nil {
		return 0, err
	}
	frame, err := c.Do(ctx, d.Command(tube))
	if err != nil {
		return 0, err
	}
	return parseCount(frame.Arg(0))
}

// Reserve waits for a job from the watched tubes.
// It blocks until a job is ready or ctx is done.
func (c *Client) Reserve(ctx context.Context) (Job, error) {
	return c.job(ctx, protocol.Reserve.Command())
}

// ReserveWithTimeout waits up to timeout for a job, or fails with ErrTimedOut.
func (c *Client) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (Job, error) {
	return c.job(ctx, protocol.ReserveWithTimeout.Command(formatSeconds(timeout)))
}

// Delete removes a job.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	_, err := c.Do(ctx, protocol.Delete.Command(formatUint(id)))
	return err
}

// Release puts a reserved job back into the ready queue.
func (c *Client) Release(ctx context.Context, id uint64, priority uint32, delay time.Duration) error {
	_, err := c.Do(ctx, protocol.Release.Command(formatUint(id), formatUint(uint64(priority)), formatSeconds(delay)))
	return err
}

// Bury buries a reserved job.
func (c *Client) Bury(ctx context.Context, id uint64, priority uint32) error {
	_, err := c.Do(ctx, protocol.Bury.Command(formatUint(id), formatUint(uint64(priority))))
	return err
}

// Touch extends the time to run of a reserved job.
func (c *Client) Touch(ctx context.Context, id uint64) error {
	_, err := c.Do(ctx, protocol.Touch.Command(formatUint(id)))
	return err
}

// Kick moves up to bound buried (or delayed) jobs of the used tube into the
// ready queue, and returns how many were kicked.
func (c *Client) Kick(ctx context.Context, bound int) (int, error) {
	frame, err := c.Do(ctx, protocol.Kick.Command(strconv.Itoa(bound)))
	if err != nil {
		return 0, err
	}
	return parseCount(frame.Arg(0))
}

// KickJob moves a buried or delayed job into the ready queue.
func (c *Client) KickJob(ctx context.Context, id uint64) error {
	_, err := c.Do(ctx, protocol.KickJob.Command(formatUint(id)))
	return err
}

// Peek returns a job by id.
func (c *Client) Peek(ctx context.Context, id uint64) (Job, error) {
	return c.job(ctx, protocol.Peek.Command(formatUint(id)))
}

// PeekReady returns the next ready job of the used tube.
func (c *Client) PeekReady(ctx context.Context) (Job, error) {
	return c.job(ctx, protocol.PeekReady.Command())
}

// PeekDelayed returns the delayed job of the used tube with the shortest delay left.
func (c *Client) PeekDelayed(ctx context.Context) (Job, error) {
	return c.job(ctx, protocol.PeekDelayed.Command())
}

// PeekBuried returns the next buried job of the used tube.
func (c *Client) PeekBuried(ctx context.Context) (Job, error) {
	return c.job(ctx, protocol.PeekBuried.Command())
}

func (c *Client) job(ctx context.Context, cmd protocol.Command) (Job, error) {
	frame, err := c.Do(ctx, cmd)
	if err != nil {
		return Job{}, err
	}
	id, err := parseID(frame.Arg(0))
	if err != nil {
		return Job{}, err
	}
	return Job{ID: id, Body: frame.Body}, nil
}

// ListTubeUsed returns the tube new jobs are put into.
func (c *Client) ListTubeUsed(ctx context.Context) (string, error) {
	frame, err := c.Do(ctx, protocol.ListTubeUsed.Command())
	if err != nil {
		return "", err
	}
	return frame.Arg(0), nil
}

// PauseTube delays new reservations from tube.
func (c *Client) PauseTube(ctx context.Context, tube string, delay time.Duration) error {
	if err := protocol.ValidateTubeName(tube); err != nil {
		return err
	}
	_, err := c.Do(ctx, protocol.PauseTube.Command(tube, formatSeconds(delay)))
	return err
}

// ListTubes returns the names of all existing tubes.
func (c *Client) ListTubes(ctx context.Context) ([]string, error) {
	return c.list(ctx, protocol.ListTubes.Command())
}

// ListTubesWatched returns the names of the watched tubes.
func (c *Client) ListTubesWatched(ctx context.Context) ([]string, error) {
	return c.list(ctx, protocol.ListTubesWatched.Command())
}

func (c *Client) list(ctx context.Context, cmd protocol.Command) ([]string, error) {
	frame, err := c.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return protocol.StringList(frame.Data)
}

// StatsJob returns the statistics of a job.
func (c *Client) StatsJob(ctx context.Context, id uint64) (map[string]any, error) {
	return c.dict(ctx, protocol.StatsJob.Command(formatUint(id)))
}

// StatsTube returns the statistics of a tube.
func (c *Client) StatsTube(ctx context.Context, tube string) (map[string]any, error) {
	if err := protocol.ValidateTubeName(tube); err != nil {
		return nil, err
	}
	return c.dict(ctx, protocol.StatsTube.Command(tube))
}

// ServerStats returns the server statistics.
func (c *Client) ServerStats(ctx context.Context) (map[string]any, error) {
	return c.dict(ctx, protocol.Stats.Command())
}

func (c *Client) dict(ctx context.Context, cmd protocol.Command) (map[string]any, error) {
	frame, err := c.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return protocol.Dict(frame.Data)
}

// Quit asks the server to close the connection, then closes it.
// Requests sent before Quit complete first.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.conn.Send(protocol.Quit.Command()).Wait(ctx)
	if err != nil {
		return err
	}
	return c.conn.Close()
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// formatSeconds truncates d to whole seconds, the protocol's time unit.
func formatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("beanstalk: invalid job id %q: %w", s, err)
	}
	return id, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("beanstalk: invalid count %q: %w", s, err)
	}
	return n, nil
}
