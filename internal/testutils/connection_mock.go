package testutils

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
//
// Reads return the scripted chunks one at a time, exactly as delivered, and
// block while none is queued. Writes are recorded.
type ConnectionMock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	chunks   [][]byte
	writeBuf bytes.Buffer
	writeErr error
	closed   bool
	eof      bool
}

// NewConnectionMock creates a new mock connection with pre-configured response chunks.
func NewConnectionMock(chunks ...string) *ConnectionMock {
	m := &ConnectionMock{}
	m.cond = sync.NewCond(&m.mu)
	m.Deliver(chunks...)
	return m
}

// Deliver queues chunks to be returned by Read, one chunk per call.
func (m *ConnectionMock) Deliver(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range chunks {
		m.chunks = append(m.chunks, []byte(chunk))
	}
	m.cond.Broadcast()
}

// DeliverBytes queues raw chunks to be returned by Read.
func (m *ConnectionMock) DeliverBytes(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = append(m.chunks, chunks...)
	m.cond.Broadcast()
}

// CloseRemote makes Read return io.EOF once the queued chunks are consumed.
func (m *ConnectionMock) CloseRemote() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eof = true
	m.cond.Broadcast()
}

// FailWrites makes every following Write fail with err.
func (m *ConnectionMock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.chunks) == 0 && !m.closed && !m.eof {
		m.cond.Wait()
	}

	if m.closed {
		return 0, net.ErrClosed
	}
	if len(m.chunks) == 0 {
		return 0, io.EOF
	}

	n = copy(b, m.chunks[0])
	if n < len(m.chunks[0]) {
		m.chunks[0] = m.chunks[0][n:]
	} else {
		m.chunks = m.chunks[1:]
	}
	return n, nil
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return net.ErrClosed
	}
	m.closed = true
	m.cond.Broadcast()
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11300}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}
