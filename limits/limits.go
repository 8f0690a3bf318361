// Package limits provides centralized device constants for hearmix.
package limits

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// RawGainMin is the lowest sample the gain potentiometer ADC produces.
	RawGainMin = 0

	// RawGainMax is the highest sample the gain potentiometer ADC produces (10-bit).
	RawGainMax = 1023

	// GainPercentSteps is the resolution of the intermediate integer percentage.
	GainPercentSteps = 100

	// MinGain and MaxGain bound every mixer tap gain.
	MinGain = 0.0
	MaxGain = 1.0

	// DefaultGain is applied to all taps during initialization.
	DefaultGain = 0.5
)

const (
	// ToneFrequencyHz is the frequency of the "device active" reference tone.
	ToneFrequencyHz = 500.0

	// ToneOnAmplitude is the tone amplitude while the button is held.
	ToneOnAmplitude = 0.1

	// ToneOffAmplitude silences the tone.
	ToneOffAmplitude = 0.0
)

const (
	// SettlingDelay lets the analog front end stabilize after a read.
	SettlingDelay = 25 * time.Millisecond

	// CycleInterval is the control loop period.
	CycleInterval = SettlingDelay

	// ControlRateHz is the nominal number of control cycles per second.
	ControlRateHz = int(time.Second / CycleInterval)
)

const (
	// SampleRate is the audio engine rate in Hz.
	SampleRate = 44100

	// BlockSize is the number of frames rendered per audio block.
	BlockSize = 128

	// NumMicChannels is the width of the microphone array.
	NumMicChannels = 4

	// NumOutputChannels is the stereo output width.
	NumOutputChannels = 2

	// DiagnosticBaud is the nominal rate of the serial diagnostic channel.
	DiagnosticBaud = 9600
)

var (
	// ErrGainOutOfRange indicates a gain outside [MinGain, MaxGain].
	ErrGainOutOfRange = errors.New("gain out of range")

	// ErrRawGainOutOfRange indicates an ADC sample above RawGainMax.
	ErrRawGainOutOfRange = errors.New("raw gain sample out of range")

	// ErrInvalidInterval indicates a non-positive timing value.
	ErrInvalidInterval = errors.New("invalid interval")
)

// ValidateGain checks that g is a usable tap gain.
func ValidateGain(g float64) error {
	if g < MinGain || g > MaxGain || math.IsNaN(g) {
		return fmt.Errorf("%w: %f not in [%.1f, %.1f]", ErrGainOutOfRange, g, MinGain, MaxGain)
	}
	return nil
}

// ValidateRawGain checks that raw is within the ADC contract.
func ValidateRawGain(raw uint16) error {
	if raw > RawGainMax {
		return fmt.Errorf("%w: %d exceeds %d", ErrRawGainOutOfRange, raw, RawGainMax)
	}
	return nil
}

// ClampRawGain pins raw to RawGainMax.
func ClampRawGain(raw uint16) uint16 {
	if raw > RawGainMax {
		return RawGainMax
	}
	return raw
}

// ValidateInterval checks that d is a usable period.
func ValidateInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}
	return nil
}
