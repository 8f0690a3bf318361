package control

import (
	"fmt"
	"time"
)

// Mode is the operating mode derived from the button each cycle.
type Mode uint8

const (
	// ModeQuiet: tone silent, indicator off.
	ModeQuiet Mode = iota
	// ModeToneActive: tone audible, indicator on.
	ModeToneActive
)

// ModeFromButton maps a button sample to a mode.
func ModeFromButton(pressed bool) Mode {
	if pressed {
		return ModeToneActive
	}
	return ModeQuiet
}

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeQuiet:
		return "quiet"
	case ModeToneActive:
		return "tone_active"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "quiet":
		*m = ModeQuiet
	case "tone_active":
		*m = ModeToneActive
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Status is the state applied by one control cycle.
type Status struct {
	Cycle         uint64    `json:"cycle"`
	RawGain       uint16    `json:"raw_gain"`
	Gain          float64   `json:"gain"`
	Mode          Mode      `json:"mode"`
	Indicator     bool      `json:"indicator"`
	ToneAmplitude float64   `json:"tone_amplitude"`
	Time          time.Time `json:"time"`
}
