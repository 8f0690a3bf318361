package control

import "errors"

// Sentinel errors for control loop construction.
var (
	// ErrNilInput indicates a gain control or button without an input pin.
	ErrNilInput = errors.New("input pin is nil")

	// ErrNilOutput indicates a loop without an indicator or mic-select pin.
	ErrNilOutput = errors.New("output pin is nil")

	// ErrNilComponent indicates a loop without a gain control, button,
	// mix graph, tone generator or pacer.
	ErrNilComponent = errors.New("loop component is nil")

	// ErrInvalidConfig indicates a loop or button setting outside its range.
	ErrInvalidConfig = errors.New("invalid control configuration")

	// ErrNotInitialized indicates Cycle was called before Init.
	ErrNotInitialized = errors.New("control loop not initialized")
)
