package diag

import "errors"

var (
	// ErrNilWriter indicates a serial reporter without an output.
	ErrNilWriter = errors.New("diagnostic writer is nil")

	// ErrInvalidBaud indicates a non-positive baud rate.
	ErrInvalidBaud = errors.New("invalid baud rate")

	// ErrHubClosed indicates the hub no longer accepts viewers.
	ErrHubClosed = errors.New("diagnostic hub closed")
)
