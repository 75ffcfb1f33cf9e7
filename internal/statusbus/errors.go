package statusbus

import "errors"

var (
	// ErrTimeout is returned when a publish, wait or read does not complete
	// within its timeout.
	ErrTimeout = errors.New("statusbus: timeout")

	// ErrClosed is returned by Publish after the bus has been closed.
	ErrClosed = errors.New("statusbus: closed")
)
