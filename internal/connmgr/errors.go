package connmgr

import "errors"

var (
	// ErrInterfaceNotFound is returned when the managed interface does not exist.
	ErrInterfaceNotFound = errors.New("connmgr: interface not found")

	// ErrNotSubscribed is returned by ResendStatus before Subscribe.
	ErrNotSubscribed = errors.New("connmgr: no link handler registered")
)
