package beanstalk

import "errors"

// ErrConnectionClosed is returned for requests that cannot complete because
// the connection shut down. Requests pending at shutdown are rejected with
// an error wrapping both ErrConnectionClosed and the cause.
var ErrConnectionClosed = errors.New("beanstalk: connection closed")
