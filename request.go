package beanstalk

import (
	"context"

	"github.com/pior/beanstalk/protocol"
)

// Request is a command sent on a Connection and the future of its response.
//
// A Request completes exactly once: resolved with the response frame, or
// rejected with an error. Requests on a connection complete in the order
// they were sent.
type Request struct {
	cmd   protocol.Command
	state protocol.ParseState // only touched by the connection's reader

	ready chan struct{}
	frame *protocol.Frame
	err   error
}

func newRequest(cmd protocol.Command) *Request {
	return &Request{
		cmd:   cmd,
		ready: make(chan struct{}),
	}
}

func rejectedRequest(cmd protocol.Command, err error) *Request {
	r := newRequest(cmd)
	r.complete(nil, err)
	return r
}

// Command returns the command this request was created for.
func (r *Request) Command() protocol.Command {
	return r.cmd
}

// Wait blocks until the request completes or ctx is done.
//
// On completion it returns the response frame and the request error. A
// protocol-level failure returns both: the frame holding the status and a
// protocol.StatusError. If ctx is done first, ctx.Err() is returned and the
// request stays pending on the connection: its response is still consumed
// when it arrives.
func (r *Request) Wait(ctx context.Context) (*protocol.Frame, error) {
	select {
	case <-r.ready:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the request completes.
func (r *Request) Done() <-chan struct{} {
	return r.ready
}

// Frame returns the response frame, or nil if the request has not completed
// or was rejected without a response.
func (r *Request) Frame() *protocol.Frame {
	select {
	case <-r.ready:
		return r.frame
	default:
		return nil
	}
}

// Err returns the error the request was rejected with, or nil.
func (r *Request) Err() error {
	select {
	case <-r.ready:
		return r.err
	default:
		return nil
	}
}

// Value returns the resolved value of the response, see protocol.Frame.Value.
func (r *Request) Value() any {
	if frame := r.Frame(); frame != nil && r.err == nil {
		return frame.Value()
	}
	return nil
}

// complete must be called once, by whoever removed the request from the
// pending queue.
func (r *Request) complete(frame *protocol.Frame, err error) {
	select {
	case <-r.ready:
		return
	default:
	}

	r.frame = frame
	r.err = err
	close(r.ready)
}
