package protocol

import (
	"errors"
	"fmt"
)

// Error types for beanstalkd protocol operations.
// They let callers tell "the server said no" apart from "the client could
// not understand the server", and decide whether the connection survives.

// StatusError is a response whose status token differs from the one the
// command expects. The error message is the literal status token.
//
// Connection handling: Connection can be REUSED, framing is intact
type StatusError StatusType

func (e StatusError) Error() string {
	return string(e)
}

// Status returns the status token carried by the error.
func (e StatusError) Status() StatusType {
	return StatusType(e)
}

// ShouldCloseConnection returns false - the server answered a well-formed frame
func (e StatusError) ShouldCloseConnection() bool {
	return false
}

// Status errors returned by beanstalkd. Compare with errors.Is.
var (
	ErrNotFound       error = StatusError(StatusNotFound)
	ErrTimedOut       error = StatusError(StatusTimedOut)
	ErrDeadlineSoon   error = StatusError(StatusDeadlineSoon)
	ErrBuried         error = StatusError(StatusBuried)
	ErrNotIgnored     error = StatusError(StatusNotIgnored)
	ErrOutOfMemory    error = StatusError(StatusOutOfMemory)
	ErrInternalError  error = StatusError(StatusInternalError)
	ErrBadFormat      error = StatusError(StatusBadFormat)
	ErrUnknownCommand error = StatusError(StatusUnknownCommand)
	ErrExpectedCRLF   error = StatusError(StatusExpectedCRLF)
	ErrJobTooBig      error = StatusError(StatusJobTooBig)
	ErrDraining       error = StatusError(StatusDraining)
)

// ParseError represents a framing violation: the response could not be
// split into frames, typically because a body-bearing status declared a
// length that is not a non-negative integer.
//
// Common causes:
//   - Non-numeric or negative body length
//   - Missing CRLF after a data block
//   - Empty header line
//
// Connection handling: Connection must be CLOSED, the byte stream can no
// longer be attributed to requests
type ParseError struct {
	Message string
	Line    string // Offending header line, if any
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	msg := "parse error: " + e.Message
	if e.Line != "" {
		msg += fmt.Sprintf(" (line %q)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - framing is lost
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// DecodeError is returned when a structured body was framed correctly but
// could not be decoded.
//
// Connection handling: Connection can be REUSED, the body bytes were consumed
type DecodeError struct {
	Status StatusType
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s body: %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - the frame was fully consumed
func (e *DecodeError) ShouldCloseConnection() bool {
	return false
}

// InvalidCommandError is returned when a command or tube name would break
// the request framing. Nothing was written to the connection.
type InvalidCommandError struct {
	Command CmdType
	Message string
}

func (e *InvalidCommandError) Error() string {
	if e.Command != "" {
		return "invalid command " + string(e.Command) + ": " + e.Message
	}
	return "invalid command: " + e.Message
}

// ShouldCloseConnection returns false - the command was rejected client-side
func (e *InvalidCommandError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps underlying I/O errors from connection operations.
//
// Connection handling: Connection is already broken, CLOSE it
type ConnectionError struct {
	Op  string // Operation that failed (read, write, dial)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by every error type of this
// package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns true for ParseError, ConnectionError and unknown error types.
// Returns false for StatusError, DecodeError, InvalidCommandError and nil.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close connection
	return true
}

// IsStatus reports whether err is a StatusError, and returns its token.
func IsStatus(err error) (StatusType, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se.Status(), true
	}
	return "", false
}
