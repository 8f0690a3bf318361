package hal

import "errors"

var (
	// ErrDirectionMismatch indicates a pin was configured for the wrong direction.
	ErrDirectionMismatch = errors.New("pin direction mismatch")

	// ErrNotTerminal indicates an interactive device was started without a TTY.
	ErrNotTerminal = errors.New("not a terminal")
)
