package softap

import "errors"

var (
	// ErrHelperMissing is returned by Init when the helper binary cannot be found.
	ErrHelperMissing = errors.New("softap: helper binary not found")

	// ErrNotInitialised is returned by Start before Init.
	ErrNotInitialised = errors.New("softap: service not initialised")
)
