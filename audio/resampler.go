package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts mono PCM between sample rates by linear interpolation.
//
// State carries across calls so consecutive blocks join without a seam.
type Resampler struct {
	inputRate  int
	outputRate int
	last       int16   // Final sample of the previous block
	position   float64 // Fractional read position into the next block
}

// NewResampler creates a new mono audio resampler.
//
// Initializes a linear interpolation resampler converting from inputRate to
// outputRate.
//
// Parameters:
//   - inputRate: Source sample rate in Hz
//   - outputRate: Target sample rate in Hz
//
// Returns:
//   - *Resampler: New resampler instance
//   - error: Validation error if either rate is not positive
func NewResampler(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewResampler",
			"input_rate":  inputRate,
			"output_rate": outputRate,
			"error":       "invalid sample rates",
		}).Error("Sample rate validation failed")
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inputRate, outputRate)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
		"ratio":       float64(inputRate) / float64(outputRate),
	}).Debug("Audio resampler created")

	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
	}, nil
}

// Resample converts one block of mono samples.
//
// The fractional read position and the last input sample carry over to the
// next call, so consecutive blocks join without a discontinuity.
//
// Parameters:
//   - input: PCM samples at the input rate
//
// Returns:
//   - []int16: PCM samples at the output rate; a copy of input when the
//     rates are equal, nil when input is empty
func (r *Resampler) Resample(input []int16) []int16 {
	if len(input) == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		out := make([]int16, len(input))
		copy(out, input)
		return out
	}

	ratio := float64(r.inputRate) / float64(r.outputRate)
	outputFrames := int(float64(len(input))/ratio + 0.5)
	out := make([]int16, 0, outputFrames)

	for i := 0; i < outputFrames; i++ {
		out = append(out, r.interpolate(input, r.position))
		r.position += ratio
	}

	r.position -= float64(len(input))
	r.last = input[len(input)-1]
	return out
}

// interpolate reads input at a fractional position. Positions in [-1, 0)
// fall between the previous block's last sample and input[0].
func (r *Resampler) interpolate(input []int16, pos float64) int16 {
	if pos < 0 {
		frac := pos + 1
		if frac < 0 {
			frac = 0
		}
		return int16(float64(r.last)*(1-frac) + float64(input[0])*frac)
	}
	idx := int(pos)
	if idx >= len(input)-1 {
		return input[len(input)-1]
	}
	frac := pos - float64(idx)
	return int16(float64(input[idx])*(1-frac) + float64(input[idx+1])*frac)
}

// InputRate returns the configured input sample rate.
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the configured output sample rate.
func (r *Resampler) OutputRate() int { return r.outputRate }

// Reset clears the inter-block state.
func (r *Resampler) Reset() {
	r.position = 0
	r.last = 0
}
