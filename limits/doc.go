// Package limits provides centralized device constants and validation functions
// for hearmix. Every component that needs a range, a rate or a default reads it
// from here so the control loop, the audio engine and the host tooling agree.
//
// # Control Domain
//
//   - RawGainMin..RawGainMax (0..1023): the range of the gain potentiometer ADC.
//   - GainPercentSteps (100): the raw value is first mapped to an integer
//     percentage, so there are 101 achievable gains (0.00 through 1.00).
//   - DefaultGain (0.5): the tap gain applied at startup before the first cycle.
//
// # Timing
//
//   - SettlingDelay (25ms): the wait after an analog read before its value is used.
//   - CycleInterval: one control cycle. It equals SettlingDelay because the
//     settling wait is the only blocking step of a cycle, giving ControlRateHz (40).
//
// # Tone
//
//   - ToneFrequencyHz (500) and ToneOnAmplitude (0.1) describe the indicator tone.
//
// # Validation Functions
//
//	if err := limits.ValidateGain(g); err != nil {
//	    // ErrGainOutOfRange
//	}
//
// ClampRawGain pins out-of-range ADC samples to RawGainMax. In-range samples pass
// through untouched, so clamping never changes the mapping of a valid reading.
package limits
