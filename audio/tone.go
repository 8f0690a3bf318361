package audio

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ToneGenerator is the control-side handle of the reference tone.
//
// Frequency is fixed at construction. Amplitude is set every control cycle,
// either to zero or to the configured "on" level.
type ToneGenerator struct {
	sink      ParameterSink
	frequency float64
	amplitude float64
}

// NewToneGenerator fixes the tone frequency on sink and silences it.
func NewToneGenerator(sink ParameterSink, frequency float64) (*ToneGenerator, error) {
	logrus.WithFields(logrus.Fields{
		"function":  "NewToneGenerator",
		"frequency": frequency,
	}).Info("Creating tone generator")

	if sink == nil {
		return nil, ErrNilSink
	}
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToneFrequency, frequency)
	}

	sink.SetToneFrequency(frequency)
	sink.SetToneAmplitude(0)

	return &ToneGenerator{
		sink:      sink,
		frequency: frequency,
	}, nil
}

// SetAmplitude forwards a to the sink.
func (t *ToneGenerator) SetAmplitude(a float64) {
	if a != t.amplitude {
		logrus.WithFields(logrus.Fields{
			"function":      "ToneGenerator.SetAmplitude",
			"old_amplitude": t.amplitude,
			"new_amplitude": a,
		}).Debug("Tone amplitude changed")
	}
	t.amplitude = a
	t.sink.SetToneAmplitude(a)
}

// Amplitude returns the last amplitude set.
func (t *ToneGenerator) Amplitude() float64 { return t.amplitude }

// Frequency returns the fixed tone frequency.
func (t *ToneGenerator) Frequency() float64 { return t.frequency }

// sineTableSize is the length of one cycle of the oscillator wavetable.
const sineTableSize = 1024

var sineTable = func() [sineTableSize]float32 {
	var t [sineTableSize]float32
	for i := range t {
		t[i] = float32(math.Sin(2 * math.Pi * float64(i) / sineTableSize))
	}
	return t
}()

// Oscillator renders the tone with a wavetable phase accumulator.
// Frequency and amplitude may be changed from another goroutine.
type Oscillator struct {
	sampleRate float64
	phase      float64
	frequency  atomicFloat64
	amplitude  atomicFloat64
}

// NewOscillator creates a silent oscillator at the given sample rate.
func NewOscillator(sampleRate int) *Oscillator {
	return &Oscillator{sampleRate: float64(sampleRate)}
}

// SetFrequency sets the frequency in Hz.
func (o *Oscillator) SetFrequency(hz float64) { o.frequency.Store(hz) }

// SetAmplitude sets the peak amplitude in full-scale units.
func (o *Oscillator) SetAmplitude(a float64) { o.amplitude.Store(a) }

// Frequency returns the current frequency.
func (o *Oscillator) Frequency() float64 { return o.frequency.Load() }

// Amplitude returns the current amplitude.
func (o *Oscillator) Amplitude() float64 { return o.amplitude.Load() }

// Read fills buf with the next samples of the tone.
// A silent oscillator keeps its phase so the tone resumes without a click.
func (o *Oscillator) Read(buf []float32) {
	amp := float32(o.amplitude.Load())
	step := o.frequency.Load() * sineTableSize / o.sampleRate

	for i := range buf {
		buf[i] = amp * sineTable[int(o.phase)]
		o.phase += step
		for o.phase >= sineTableSize {
			o.phase -= sineTableSize
		}
		for o.phase < 0 {
			o.phase += sineTableSize
		}
	}
}

// atomicFloat64 stores a float64 as its IEEE bits.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat64) Load() float64 { return math.Float64frombits(f.bits.Load()) }
