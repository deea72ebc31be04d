package beanstalk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pior/beanstalk/internal/testutils"
	"github.com/pior/beanstalk/protocol"
)

func newTestConnection(t *testing.T, chunks ...string) (*Connection, *testutils.ConnectionMock) {
	t.Helper()

	mock := testutils.NewConnectionMock(chunks...)
	conn := NewConnection(mock, ConnectionOptions{Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func wait(t *testing.T, req *Request) (*protocol.Frame, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := req.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "request did not complete")
	return frame, err
}

// waitRead waits until the connection has read n bytes from the network.
func waitRead(t *testing.T, conn *Connection, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return conn.Stats().BytesRead >= n
	}, 2*time.Second, time.Millisecond)
}

func requirePending(t *testing.T, req *Request) {
	t.Helper()
	select {
	case <-req.Done():
		t.Fatalf("request %s completed early: %v", req.Command(), req.Err())
	default:
	}
}

func TestConnection_Use(t *testing.T) {
	conn, mock := newTestConnection(t, "USING testtube\r\n")

	frame, err := wait(t, conn.Send(protocol.Use.Command("testtube")))
	require.NoError(t, err)
	require.Equal(t, "testtube", frame.Value())
	require.Equal(t, "use testtube\r\n", mock.GetWrittenRequest())
}

func TestConnection_Put(t *testing.T) {
	conn, mock := newTestConnection(t, "INSERTED 7\r\n")

	req := conn.Send(protocol.Put.CommandWithPayload([]byte("hello"), "0", "0", "60"))
	frame, err := wait(t, req)
	require.NoError(t, err)
	require.Equal(t, "7", frame.Value())
	require.Equal(t, "7", req.Value())
	require.Equal(t, "put 0 0 60 5\r\nhello\r\n", mock.GetWrittenRequest())
}

func TestConnection_BodySplitAcrossReads(t *testing.T) {
	conn, mock := newTestConnection(t)

	req := conn.Send(protocol.Reserve.Command())

	mock.Deliver("RESERVED 7 11\r\n")
	waitRead(t, conn, 15)
	requirePending(t, req)

	mock.Deliver("hello world\r\n")
	frame, err := wait(t, req)
	require.NoError(t, err)
	require.Equal(t, []any{"7", []byte("hello world")}, frame.Value())
}

func TestConnection_FailureStatus(t *testing.T) {
	conn, _ := newTestConnection(t, "NOT_FOUND\r\n")

	frame, err := wait(t, conn.Send(protocol.Peek.Command("42")))
	require.EqualError(t, err, "NOT_FOUND")
	require.ErrorIs(t, err, protocol.ErrNotFound)
	require.NotNil(t, frame)
	require.Equal(t, protocol.StatusNotFound, frame.Status)

	// The connection survives protocol-level failures
	require.NoError(t, conn.Err())
	require.Equal(t, uint64(1), conn.Stats().Rejected)
}

func TestConnection_ConcatenatedResponses(t *testing.T) {
	conn, mock := newTestConnection(t)

	first := conn.Send(protocol.Reserve.Command())
	second := conn.Send(protocol.Peek.Command("9"))

	mock.Deliver("RESERVED 8 3\r\nabc\r\nFOUND 9 4\r\ndefg\r\n")

	frame, err := wait(t, first)
	require.NoError(t, err)
	require.Equal(t, []any{"8", []byte("abc")}, frame.Value())

	frame, err = wait(t, second)
	require.NoError(t, err)
	require.Equal(t, []any{"9", []byte("defg")}, frame.Value())

	require.Equal(t, "reserve\r\npeek 9\r\n", mock.GetWrittenRequest())
}

func TestConnection_OrderPreservation(t *testing.T) {
	conn, mock := newTestConnection(t)

	const n = 50
	cmds := make([]protocol.Command, n)
	var responses strings.Builder
	for i := range n {
		cmds[i] = protocol.Use.Command(fmt.Sprintf("tube%d", i))
		fmt.Fprintf(&responses, "USING tube%d\r\n", i)
	}

	reqs, err := conn.Execute(context.Background(), cmds...)
	require.NoError(t, err)
	require.Len(t, reqs, n)

	// Deliver in odd-sized chunks that ignore frame boundaries
	data := responses.String()
	for len(data) > 0 {
		size := min(7, len(data))
		mock.Deliver(data[:size])
		data = data[size:]
	}

	for i, req := range reqs {
		frame, err := wait(t, req)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("tube%d", i), frame.Value())

		for _, earlier := range reqs[:i] {
			select {
			case <-earlier.Done():
			default:
				t.Fatalf("request %d completed before an earlier one", i)
			}
		}
	}
}

func TestConnection_SplitAtEveryOffset(t *testing.T) {
	response := "RESERVED 7 6\r\na\r\nb\r\n\r\nUSING x\r\nNOT_FOUND\r\n"

	for i := 1; i < len(response); i++ {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conn, mock := newTestConnection(t)

			reqs, err := conn.Execute(context.Background(),
				protocol.Reserve.Command(),
				protocol.Use.Command("x"),
				protocol.Peek.Command("3"),
			)
			require.NoError(t, err)

			mock.Deliver(response[:i], response[i:])

			frame, err := wait(t, reqs[0])
			require.NoError(t, err)
			require.Equal(t, []byte("a\r\nb\r\n"), frame.Body)

			frame, err = wait(t, reqs[1])
			require.NoError(t, err)
			require.Equal(t, "x", frame.Value())

			_, err = wait(t, reqs[2])
			require.ErrorIs(t, err, protocol.ErrNotFound)

			require.Zero(t, conn.Pending())
		})
	}
}

func TestConnection_ByteByByte(t *testing.T) {
	body := "---\ncurrent-jobs-ready: 0\nname: default\n"
	response := fmt.Sprintf("OK %d\r\n%s\r\n", len(body), body)

	conn, mock := newTestConnection(t)
	req := conn.Send(protocol.StatsTube.Command("default"))

	for i := range len(response) {
		mock.Deliver(response[i : i+1])
	}

	frame, err := wait(t, req)
	require.NoError(t, err)

	stats, err := protocol.Dict(frame.Value())
	require.NoError(t, err)
	require.Equal(t, "default", stats["name"])
	require.Equal(t, 0, stats["current-jobs-ready"])
}

func TestConnection_ResponseBeforeEnqueue(t *testing.T) {
	// Bytes read while no request is pending stay buffered
	conn, _ := newTestConnection(t, "USING early\r\n")
	waitRead(t, conn, 13)

	frame, err := wait(t, conn.Send(protocol.Use.Command("early")))
	require.NoError(t, err)
	require.Equal(t, "early", frame.Value())
}

func TestConnection_DecodeErrorRejectsOnlyThatRequest(t *testing.T) {
	body := "---\n[oops\n"
	conn, _ := newTestConnection(t, fmt.Sprintf("OK %d\r\n%s\r\nUSING next\r\n", len(body), body))

	reqs, err := conn.Execute(context.Background(), protocol.Stats.Command(), protocol.Use.Command("next"))
	require.NoError(t, err)

	_, err = wait(t, reqs[0])
	var decodeErr *protocol.DecodeError
	require.ErrorAs(t, err, &decodeErr)

	frame, err := wait(t, reqs[1])
	require.NoError(t, err)
	require.Equal(t, "next", frame.Value())
	require.NoError(t, conn.Err())
}

func TestConnection_FramingViolation(t *testing.T) {
	conn, mock := newTestConnection(t)

	reqs, err := conn.Execute(context.Background(), protocol.Reserve.Command(), protocol.Use.Command("x"))
	require.NoError(t, err)

	mock.Deliver("RESERVED 7 abc\r\n")

	_, err = wait(t, reqs[0])
	var parseErr *protocol.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.NotErrorIs(t, err, ErrConnectionClosed)

	_, err = wait(t, reqs[1])
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.ErrorAs(t, err, &parseErr)

	<-conn.Done()
	require.ErrorIs(t, conn.Err(), ErrConnectionClosed)
	require.Eventually(t, mock.IsClosed, time.Second, time.Millisecond)
}

func TestConnection_CloseRejectsPending(t *testing.T) {
	conn, mock := newTestConnection(t)

	reqs, err := conn.Execute(context.Background(),
		protocol.Reserve.Command(),
		protocol.Reserve.Command(),
		protocol.Reserve.Command(),
	)
	require.NoError(t, err)
	require.Equal(t, 3, conn.Pending())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.True(t, mock.IsClosed())

	for _, req := range reqs {
		_, err := wait(t, req)
		require.ErrorIs(t, err, ErrConnectionClosed)
	}
	require.Zero(t, conn.Pending())
	require.Equal(t, uint64(3), conn.Stats().Failed)
}

func TestConnection_RemoteCloseRejectsPending(t *testing.T) {
	conn, mock := newTestConnection(t)

	req := conn.Send(protocol.Reserve.Command())
	mock.Deliver("RESERVED 1 10\r\nhal")
	mock.CloseRemote()

	_, err := wait(t, req)
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.ErrorIs(t, err, io.EOF)

	var connErr *protocol.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "read", connErr.Op)
}

func TestConnection_SendAfterClose(t *testing.T) {
	conn, mock := newTestConnection(t)
	require.NoError(t, conn.Close())

	_, err := wait(t, conn.Send(protocol.Stats.Command()))
	require.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.Execute(context.Background(), protocol.Stats.Command())
	require.ErrorIs(t, err, ErrConnectionClosed)

	require.Empty(t, mock.GetWrittenRequest())
}

func TestConnection_WriteError(t *testing.T) {
	conn, mock := newTestConnection(t)
	mock.FailWrites(io.ErrClosedPipe)

	_, err := wait(t, conn.Send(protocol.Stats.Command()))
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.ErrorIs(t, err, io.ErrClosedPipe)

	var connErr *protocol.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "write", connErr.Op)

	_, err = wait(t, conn.Send(protocol.Stats.Command()))
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnection_InvalidCommand(t *testing.T) {
	conn, mock := newTestConnection(t)

	_, err := wait(t, conn.Send(protocol.Use.Command("two words")))
	var invalid *protocol.InvalidCommandError
	require.ErrorAs(t, err, &invalid)

	_, err = conn.Execute(context.Background(), protocol.Stats.Command(), protocol.Delete.Command(""))
	require.ErrorAs(t, err, &invalid)

	require.Empty(t, mock.GetWrittenRequest())
	require.Zero(t, conn.Pending())
	require.NoError(t, conn.Err())
}

func TestConnection_Quit(t *testing.T) {
	conn, mock := newTestConnection(t)

	reqs, err := conn.Execute(context.Background(), protocol.Use.Command("a"), protocol.Quit.Command())
	require.NoError(t, err)

	// quit has no response but completes after the requests before it
	requirePending(t, reqs[1])

	mock.Deliver("USING a\r\n")
	_, err = wait(t, reqs[0])
	require.NoError(t, err)

	frame, err := wait(t, reqs[1])
	require.NoError(t, err)
	require.Nil(t, frame.Value())
	require.Equal(t, "use a\r\nquit\r\n", mock.GetWrittenRequest())
}

// closingOnQuit is a server that hangs up as soon as it reads quit, with the
// EOF reaching the reader before the sender resumes.
type closingOnQuit struct {
	*testutils.ConnectionMock
}

func (c closingOnQuit) Write(b []byte) (int, error) {
	n, err := c.ConnectionMock.Write(b)
	if strings.Contains(string(b), "quit\r\n") {
		c.CloseRemote()
		time.Sleep(time.Millisecond)
	}
	return n, err
}

func TestConnection_QuitServerCloses(t *testing.T) {
	for range 20 {
		mock := closingOnQuit{testutils.NewConnectionMock()}
		conn := NewConnection(mock, ConnectionOptions{Logger: zaptest.NewLogger(t)})

		req := conn.Send(protocol.Quit.Command())

		_, err := wait(t, req)
		require.NoError(t, err)

		<-conn.Done()
		require.NoError(t, conn.Close())
	}
}

func TestConnection_WaitCancelled(t *testing.T) {
	conn, mock := newTestConnection(t)

	req := conn.Send(protocol.ReserveWithTimeout.Command("5"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The request is still pending and consumes its response
	require.Equal(t, 1, conn.Pending())

	next := conn.Send(protocol.Use.Command("b"))
	mock.Deliver("TIMED_OUT\r\nUSING b\r\n")

	_, err = wait(t, req)
	require.ErrorIs(t, err, protocol.ErrTimedOut)

	frame, err := wait(t, next)
	require.NoError(t, err)
	require.Equal(t, "b", frame.Value())
}

func TestConnection_ExecuteCancelledContext(t *testing.T) {
	conn, mock := newTestConnection(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reqs, err := conn.Execute(ctx, protocol.Stats.Command())
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, reqs)
	require.Empty(t, mock.GetWrittenRequest())
}

func TestConnection_ConcurrentSends(t *testing.T) {
	conn, mock := newTestConnection(t)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	results := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				tube := fmt.Sprintf("w%d-%d", w, i)
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				frame, err := conn.Send(protocol.Use.Command(tube)).Wait(ctx)
				cancel()
				if err == nil && frame.Value() != tube {
					err = fmt.Errorf("got %v for %s", frame.Value(), tube)
				}
				results <- err
			}
		}()
	}

	// Echo every written use command back, the way the server would
	go func() {
		answered := 0
		for answered < workers*perWorker {
			lines := strings.Split(mock.GetWrittenRequest(), "\r\n")
			lines = lines[:len(lines)-1]
			for _, line := range lines[answered:] {
				mock.Deliver("USING " + strings.TrimPrefix(line, "use ") + "\r\n")
			}
			answered = len(lines)
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()
	close(results)
	for err := range results {
		require.NoError(t, err)
	}
	require.Equal(t, uint64(workers*perWorker), conn.Stats().Completed)
}

func TestConnection_Stats(t *testing.T) {
	conn, _ := newTestConnection(t, "INSERTED 1\r\n", "NOT_FOUND\r\n")

	_, err := wait(t, conn.Send(protocol.Put.CommandWithPayload([]byte("abc"), "0", "0", "1")))
	require.NoError(t, err)
	_, err = wait(t, conn.Send(protocol.Delete.Command("2")))
	require.ErrorIs(t, err, protocol.ErrNotFound)

	stats := conn.Stats()
	require.Equal(t, uint64(2), stats.Sent)
	require.Equal(t, uint64(1), stats.Completed)
	require.Equal(t, uint64(1), stats.Rejected)
	require.Zero(t, stats.Failed)
	require.Equal(t, uint64(len("put 0 0 1 3\r\nabc\r\ndelete 2\r\n")), stats.BytesWritten)
	require.Equal(t, uint64(len("INSERTED 1\r\nNOT_FOUND\r\n")), stats.BytesRead)
	require.Zero(t, stats.Pending)
}

func TestDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	// A minimal server answering use commands
	go func() {
		nc, err := listener.Accept()
		if err != nil {
			return
		}
		defer nc.Close()

		r := bufio.NewReader(nc)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			tube := strings.TrimSuffix(strings.TrimPrefix(line, "use "), "\r\n")
			nc.Write([]byte("USING " + tube + "\r\n"))
		}
	}()

	ctx := context.Background()
	conn, err := Dial(ctx, listener.Addr().String(), ConnectionOptions{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, listener.Addr().String(), conn.Addr())

	frame, err := wait(t, conn.Send(protocol.Use.Command("remote")))
	require.NoError(t, err)
	require.Equal(t, "remote", frame.Value())
}

func TestDial_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = Dial(context.Background(), addr, ConnectionOptions{})
	var connErr *protocol.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "dial", connErr.Op)
	require.False(t, errors.Is(err, ErrConnectionClosed))
}
