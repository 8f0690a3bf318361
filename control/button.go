package control

import (
	"fmt"

	"github.com/opd-ai/hearmix/hal"
)

// ModeButton reads the momentary mode button. The line is active-high.
type ModeButton struct {
	in       hal.DigitalInput
	debounce int
	state    bool
	pending  int
}

// NewModeButton wraps a digital input. debounceCycles of 0 reports every
// sample as-is; N > 0 requires N consecutive differing samples before the
// reported state changes.
func NewModeButton(in hal.DigitalInput, debounceCycles int) (*ModeButton, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	if debounceCycles < 0 {
		return nil, fmt.Errorf("%w: debounce %d", ErrInvalidConfig, debounceCycles)
	}
	return &ModeButton{in: in, debounce: debounceCycles}, nil
}

// Configure sets the input pin direction.
func (b *ModeButton) Configure() error {
	return hal.Configure(b.in, hal.DirectionInput)
}

// IsPressed samples the button.
func (b *ModeButton) IsPressed() bool {
	raw := b.in.Read()
	if b.debounce == 0 {
		b.state = raw
		return raw
	}

	if raw == b.state {
		b.pending = 0
		return b.state
	}
	b.pending++
	if b.pending >= b.debounce {
		b.state = raw
		b.pending = 0
	}
	return b.state
}
