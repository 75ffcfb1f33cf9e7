package credentials

import "errors"

var (
	// ErrNotFound is returned when no credential exists for an SSID.
	ErrNotFound = errors.New("credentials: not found")

	// ErrInvalidSSID is returned for an empty or oversized SSID.
	ErrInvalidSSID = errors.New("credentials: invalid ssid")
)
