package audio

import (
	"github.com/sirupsen/logrus"
)

// Mixer is a three-input summing mixer with one gain per tap.
//
// Gains are stored atomically: the control loop writes them while the engine
// reads them at block boundaries, without a lock on the audio path.
type Mixer struct {
	ear   Ear
	gains [TapsPerEar]atomicFloat64
}

// NewMixer creates a mixer with all taps at zero gain.
func NewMixer(ear Ear) *Mixer {
	return &Mixer{ear: ear}
}

// SetGain sets one tap gain. Out-of-range taps are ignored.
func (m *Mixer) SetGain(tap int, gain float64) {
	if tap < 0 || tap >= TapsPerEar {
		logrus.WithFields(logrus.Fields{
			"function": "Mixer.SetGain",
			"ear":      m.ear.String(),
			"tap":      tap,
		}).Warn("Ignoring gain for unknown tap")
		return
	}
	m.gains[tap].Store(gain)
}

// Gain returns one tap gain.
func (m *Mixer) Gain(tap int) float64 {
	if tap < 0 || tap >= TapsPerEar {
		return 0
	}
	return m.gains[tap].Load()
}

// Mix writes the gain-weighted sum of inputs into out.
// Each input must be at least len(out) long; nil inputs contribute silence.
func (m *Mixer) Mix(inputs [TapsPerEar][]float32, out []float32) {
	var g [TapsPerEar]float32
	for tap := range g {
		g[tap] = float32(m.gains[tap].Load())
	}

	for i := range out {
		out[i] = 0
	}
	for tap, in := range inputs {
		if in == nil || g[tap] == 0 {
			continue
		}
		for i := range out {
			out[i] += in[i] * g[tap]
		}
	}
}

// toPCM converts normalized samples to int16 with clipping protection.
// It returns the number of clipped samples.
func toPCM(in []float32, out []int16) int {
	clipped := 0
	for i, s := range in {
		v := float64(s) * 32767.0
		if v > 32767.0 {
			out[i] = 32767
			clipped++
		} else if v < -32768.0 {
			out[i] = -32768
			clipped++
		} else {
			out[i] = int16(v)
		}
	}
	return clipped
}
