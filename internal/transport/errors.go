package transport

import "errors"

var (
	// ErrNotConnected is returned by PublishPayload while the broker
	// session is down.
	ErrNotConnected = errors.New("transport: not connected")
)
