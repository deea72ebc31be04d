package beanstalk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/edwingeng/deque/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pior/beanstalk/protocol"
)

const (
	defaultReadBufferSize = 4096

	// Read buffers grown by a large body are dropped once drained.
	maxRetainedBuffer = 1 << 20
)

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	// Logger receives debug logs for sends and frames, warnings for framing
	// violations. Nil means no logging.
	Logger *zap.Logger

	// DecodeBody decodes structured (OK) bodies. Nil means protocol.DecodeYAML.
	DecodeBody protocol.BodyDecoder

	// ReadBufferSize is the size of a single network read. Zero means 4KB.
	ReadBufferSize int
}

// Connection is a single pipelined beanstalkd connection.
//
// Any number of requests may be outstanding. Each response is matched to
// the oldest outstanding request, the order the server answers in. Bytes
// are parsed as they arrive, so responses complete regardless of how the
// network splits them.
//
// Connection is safe for concurrent use.
type Connection struct {
	conn   net.Conn
	logger *zap.Logger
	decode protocol.BodyDecoder

	// writeMu makes enqueue+write atomic, so queue order is wire order
	writeMu sync.Mutex
	writer  *bufio.Writer

	// mu guards the pending queue and the shutdown state
	mu      sync.Mutex
	pending *deque.Deque[*Request]
	closed  bool
	err     error
	done    chan struct{}

	// readMu guards the receive buffer and the head request's parse state
	readMu sync.Mutex
	buf    []byte

	readBufferSize int
	stats          connectionStatsCollector
}

// Dial connects to the beanstalkd server at addr.
func Dial(ctx context.Context, addr string, opts ConnectionOptions) (*Connection, error) {
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &protocol.ConnectionError{Op: "dial", Err: err}
	}
	return NewConnection(netConn, opts), nil
}

// NewConnection wraps an established network connection and starts reading
// responses from it. The Connection owns netConn from now on.
func NewConnection(netConn net.Conn, opts ConnectionOptions) *Connection {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	decode := opts.DecodeBody
	if decode == nil {
		decode = protocol.DecodeYAML
	}

	readBufferSize := opts.ReadBufferSize
	if readBufferSize <= 0 {
		readBufferSize = defaultReadBufferSize
	}

	c := &Connection{
		conn:           netConn,
		logger:         logger.With(zap.Stringer("addr", netConn.RemoteAddr())),
		decode:         decode,
		pending:        deque.NewDeque[*Request](),
		done:           make(chan struct{}),
		readBufferSize: readBufferSize,
	}
	c.writer = bufio.NewWriter(countingWriter{w: netConn, stats: &c.stats})

	go c.readLoop()

	return c
}

// Send writes cmd and returns its pending request.
//
// Send never blocks on the response. Errors are reported through the
// request: an invalid command is rejected without writing anything, and a
// closed connection rejects immediately with ErrConnectionClosed.
func (c *Connection) Send(cmd protocol.Command) *Request {
	reqs, err := c.send(context.Background(), []protocol.Command{cmd})
	if len(reqs) == 0 {
		return rejectedRequest(cmd, err)
	}
	return reqs[0]
}

// Execute pipelines cmds with a single flush and returns their requests in
// the same order.
//
// The batch is validated first: if any command is invalid nothing is sent.
// ctx bounds the write only, use Request.Wait to wait for responses.
func (c *Connection) Execute(ctx context.Context, cmds ...protocol.Command) ([]*Request, error) {
	if len(cmds) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return c.send(ctx, cmds)
}

func (c *Connection) send(ctx context.Context, cmds []protocol.Command) ([]*Request, error) {
	for _, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
	}

	reqs := make([]*Request, len(cmds))
	for i, cmd := range cmds {
		reqs[i] = newRequest(cmd)
	}

	c.writeMu.Lock()

	// Enqueue before writing: the response may arrive before Write returns
	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil, err
	}
	for _, req := range reqs {
		c.pending.PushBack(req)
	}
	c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}

	var err error
	for _, req := range reqs {
		if err = protocol.WriteCommand(c.writer, req.cmd); err != nil {
			break
		}
	}
	if err == nil {
		err = c.writer.Flush()
	}
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("write failed", zap.Error(err))
		c.shutdown(&protocol.ConnectionError{Op: "write", Err: err})
		return reqs, err
	}

	c.stats.recordSent(len(reqs))
	if ce := c.logger.Check(zap.DebugLevel, "sent"); ce != nil {
		ce.Write(zap.Stringer("command", reqs[0].cmd), zap.Int("batch", len(reqs)))
	}

	// Completes commands without a response, and responses read before the
	// requests were queued
	c.onData(nil)

	return reqs, nil
}

func (c *Connection) readLoop() {
	chunk := make([]byte, c.readBufferSize)
	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.stats.recordRead(n)
			c.onData(chunk[:n])
		}
		if err != nil {
			// A server closes right after quit: complete it before failing the rest
			c.onData(nil)
			c.shutdown(&protocol.ConnectionError{Op: "read", Err: err})
			return
		}
	}
}

// onData appends chunk to the receive buffer and completes every pending
// request whose response is now complete, oldest first.
func (c *Connection) onData(chunk []byte) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	c.buf = append(c.buf, chunk...)

	offset := 0
	for {
		c.mu.Lock()
		head, ok := c.pending.Front()
		if c.closed || !ok {
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()

		frame, consumed, err := protocol.Parse(c.buf[offset:], head.cmd.Expect, &head.state, c.decode)
		if err != nil {
			c.logger.Warn("framing violation",
				zap.Stringer("command", head.cmd),
				zap.Error(err),
			)
			if c.popHead(head) {
				c.stats.recordFailed(1)
				head.complete(nil, err)
			}
			c.shutdown(err)
			break
		}
		if frame == nil {
			break
		}

		offset += consumed
		if !c.popHead(head) {
			break
		}
		c.resolve(head, frame)
	}

	c.compact(offset)
}

// popHead removes head from the queue, unless shutdown already drained it.
func (c *Connection) popHead(head *Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	front, ok := c.pending.Front()
	if c.closed || !ok || front != head {
		return false
	}
	c.pending.PopFront()
	return true
}

func (c *Connection) resolve(req *Request, frame *protocol.Frame) {
	err := frame.AsError()
	if err != nil {
		c.stats.recordRejected()
	} else {
		c.stats.recordCompleted()
	}

	if ce := c.logger.Check(zap.DebugLevel, "frame"); ce != nil {
		ce.Write(
			zap.Stringer("command", req.cmd),
			zap.String("status", string(frame.Status)),
			zap.Int("body", len(frame.Body)),
		)
	}

	req.complete(frame, err)
}

// compact drops the consumed prefix of the receive buffer.
func (c *Connection) compact(offset int) {
	if offset > 0 {
		n := copy(c.buf, c.buf[offset:])
		c.buf = c.buf[:n]
	}

	if len(c.buf) == 0 {
		if cap(c.buf) > maxRetainedBuffer {
			c.buf = nil
		}
		return
	}

	c.mu.Lock()
	idle := c.pending.IsEmpty() && !c.closed
	c.mu.Unlock()
	if idle {
		c.logger.Warn("unsolicited bytes buffered", zap.Int("size", len(c.buf)))
	}
}

// shutdown closes the connection once and rejects every pending request.
// It returns the error of closing the network connection, on the first call.
func (c *Connection) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if cause == nil {
		c.err = ErrConnectionClosed
	} else {
		c.err = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}

	pending := make([]*Request, 0, c.pending.Len())
	for !c.pending.IsEmpty() {
		pending = append(pending, c.pending.PopFront())
	}
	err := c.err
	close(c.done)
	c.mu.Unlock()

	c.logger.Info("connection closed", zap.Error(cause), zap.Int("pending", len(pending)))

	c.stats.recordFailed(len(pending))
	for _, req := range pending {
		req.complete(nil, err)
	}

	return c.conn.Close()
}

// Close closes the connection. Pending requests are rejected with
// ErrConnectionClosed. Close is idempotent.
func (c *Connection) Close() error {
	c.writeMu.Lock()
	var flushErr error
	if !c.isClosed() {
		flushErr = c.writer.Flush()
	}
	c.writeMu.Unlock()

	closeErr := c.shutdown(nil)
	if errors.Is(closeErr, net.ErrClosed) {
		closeErr = nil
	}
	return multierr.Combine(flushErr, closeErr)
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection shut down, or nil while it is open.
// The error matches ErrConnectionClosed.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending returns the number of requests waiting for a response.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// Stats returns a snapshot of the connection statistics.
func (c *Connection) Stats() ConnectionStats {
	return c.stats.snapshot(c.Pending())
}

// Addr returns the remote address.
func (c *Connection) Addr() string {
	return c.conn.RemoteAddr().String()
}
