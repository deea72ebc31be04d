// Package protocol provides the wire protocol implementation for beanstalkd:
// command serialization, incremental response framing and the error types
// that tell protocol failures apart from framing and connection failures.
//
// This package has no connection management. It is the foundation of the
// pipelined Connection in the parent package, and can be used on its own by
// clients with different properties.
//
// # Core Types
//
//   - Descriptor: static definition of a command (name, expected status, payload)
//   - Command: one request, built from a Descriptor
//   - Frame: one parsed response (header tokens and optional body)
//   - ParseState: what the parser knows about a partially received frame
//
// # Serialization
//
// WriteCommand serializes a command to wire format:
//
//	cmd := protocol.Put.CommandWithPayload([]byte("hello"), "0", "0", "60")
//	err := protocol.WriteCommand(w, cmd) // put 0 0 60 5\r\nhello\r\n
//
// # Parsing
//
// Parse works on a byte buffer rather than a reader: network reads are
// chunked arbitrarily, so a frame may span many reads and one read may hold
// many frames. Parse reports either that more bytes are needed or a
// complete frame and the number of bytes it used:
//
//	var st protocol.ParseState
//	frame, n, err := protocol.Parse(buf, protocol.StatusReserved, &st, protocol.DecodeYAML)
//	switch {
//	case err != nil:
//	    // framing violation, close the connection
//	case frame == nil:
//	    // wait for more bytes, call again with the grown buffer
//	default:
//	    buf = buf[n:] // the rest belongs to the next response
//	}
//
// Responses come in three shapes:
//
//	USING default\r\n                 no body
//	RESERVED 7 11\r\nhello world\r\n   raw body, length is the last header token
//	OK 21\r\n---\n- default\n- jobs\n\r\n  structured (YAML) body
//
// A body is always exactly the declared number of bytes: a body containing
// CRLF is never truncated.
//
// # Error Handling
//
//   - StatusError: the server answered with an unexpected status, connection can be REUSED
//   - ParseError: framing violation, CLOSE connection
//   - DecodeError: a structured body could not be decoded, connection can be REUSED
//   - InvalidCommandError: rejected before anything was written
//   - ConnectionError: network/I/O error, connection already broken
//
// StatusError messages are the literal status token, and sentinels such as
// ErrNotFound and ErrTimedOut compare with errors.Is:
//
//	if errors.Is(err, protocol.ErrTimedOut) {
//	    // reserve-with-timeout expired
//	}
package protocol
