package hal

import "fmt"

// AnalogInput is a single ADC channel.
type AnalogInput interface {
	// ReadRaw samples the channel. Real hardware returns 0..1023.
	ReadRaw() uint16
}

// DigitalInput is a single GPIO input line.
type DigitalInput interface {
	// Read reports whether the line is electrically high.
	Read() bool
}

// DigitalOutput is a single GPIO output line.
type DigitalOutput interface {
	// Set drives the line high (true) or low (false).
	Set(high bool)
}

// Direction is the configured direction of a pin.
type Direction uint8

const (
	DirectionUnset Direction = iota
	DirectionInput
	DirectionOutput
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unset"
	}
}

// Configurer is implemented by pins that need their direction set before use.
type Configurer interface {
	Configure(dir Direction) error
}

// Configure sets the direction of pin if it implements Configurer.
// Pins without setup requirements are accepted as-is.
func Configure(pin interface{}, dir Direction) error {
	c, ok := pin.(Configurer)
	if !ok {
		return nil
	}
	if err := c.Configure(dir); err != nil {
		return fmt.Errorf("configure %s: %w", dir, err)
	}
	return nil
}
