package audio

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Ear identifies one output side of the device.
type Ear int

const (
	EarLeft Ear = iota
	EarRight
)

// NumEars is the number of output mixers.
const NumEars = 2

// TapsPerEar is the number of inputs on each ear mixer.
const TapsPerEar = 3

// NumTaps is the total number of gain taps in the graph.
const NumTaps = NumEars * TapsPerEar

// String returns the ear name.
func (e Ear) String() string {
	switch e {
	case EarLeft:
		return "left"
	case EarRight:
		return "right"
	default:
		return fmt.Sprintf("ear(%d)", int(e))
	}
}

// OutputChannel returns the stereo output channel fed by this ear.
func (e Ear) OutputChannel() int { return int(e) }

// Source identifies a signal that can feed a mixer tap.
type Source int

const (
	SourceMic0 Source = iota
	SourceMic1
	SourceMic2
	SourceMic3
	SourceTone
)

// NumMics is the number of microphone channels.
const NumMics = 4

// IsMic reports whether s is a microphone channel.
func (s Source) IsMic() bool { return s >= SourceMic0 && s <= SourceMic3 }

// String returns the source name.
func (s Source) String() string {
	if s.IsMic() {
		return fmt.Sprintf("mic%d", int(s))
	}
	if s == SourceTone {
		return "tone"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Route connects one source to one mixer tap.
type Route struct {
	Source Source
	Tap    int
}

// Topology is the fixed routing table: for each ear, the sources feeding its taps.
type Topology map[Ear][]Route

// DefaultTopology returns the stereo microphone array wiring: even channels
// to the left ear, odd channels to the right, tone on the last tap of both.
func DefaultTopology() Topology {
	return Topology{
		EarLeft: {
			{Source: SourceMic0, Tap: 0},
			{Source: SourceMic2, Tap: 1},
			{Source: SourceTone, Tap: 2},
		},
		EarRight: {
			{Source: SourceMic1, Tap: 0},
			{Source: SourceMic3, Tap: 1},
			{Source: SourceTone, Tap: 2},
		},
	}
}

// Validate checks that t describes two complete three-tap mixers, that every
// microphone feeds exactly one tap and that both ears receive the tone.
func (t Topology) Validate() error {
	if len(t) != NumEars {
		return fmt.Errorf("%w: %d ears, want %d", ErrInvalidTopology, len(t), NumEars)
	}

	micUses := make(map[Source]int)
	for _, ear := range []Ear{EarLeft, EarRight} {
		routes, ok := t[ear]
		if !ok {
			return fmt.Errorf("%w: missing %s ear", ErrInvalidTopology, ear)
		}
		if len(routes) != TapsPerEar {
			return fmt.Errorf("%w: %s ear has %d taps, want %d", ErrInvalidTopology, ear, len(routes), TapsPerEar)
		}

		var taps [TapsPerEar]bool
		tone := false
		for _, r := range routes {
			if r.Tap < 0 || r.Tap >= TapsPerEar {
				return fmt.Errorf("%w: %s ear tap %d out of range", ErrInvalidTopology, ear, r.Tap)
			}
			if taps[r.Tap] {
				return fmt.Errorf("%w: %s ear tap %d used twice", ErrInvalidTopology, ear, r.Tap)
			}
			taps[r.Tap] = true

			switch {
			case r.Source == SourceTone:
				tone = true
			case r.Source.IsMic():
				micUses[r.Source]++
			default:
				return fmt.Errorf("%w: unknown %s", ErrInvalidTopology, r.Source)
			}
		}
		if !tone {
			return fmt.Errorf("%w: %s ear has no tone tap", ErrInvalidTopology, ear)
		}
	}

	for mic := SourceMic0; mic <= SourceMic3; mic++ {
		if micUses[mic] != 1 {
			return fmt.Errorf("%w: %s routed %d times, want 1", ErrInvalidTopology, mic, micUses[mic])
		}
	}
	return nil
}

// Clone returns a deep copy with routes sorted by tap.
func (t Topology) Clone() Topology {
	c := make(Topology, len(t))
	for ear, routes := range t {
		r := make([]Route, len(routes))
		copy(r, routes)
		sort.Slice(r, func(i, j int) bool { return r[i].Tap < r[j].Tap })
		c[ear] = r
	}
	return c
}

// SourceAt returns the source wired to the given tap.
func (t Topology) SourceAt(ear Ear, tap int) (Source, bool) {
	for _, r := range t[ear] {
		if r.Tap == tap {
			return r.Source, true
		}
	}
	return 0, false
}

// ParameterSink is the audio engine's control surface. The control loop is
// the only writer; the engine reads the values at its own block boundary.
type ParameterSink interface {
	// SetTapGain sets the gain of one mixer input.
	SetTapGain(ear Ear, tap int, gain float64)

	// SetToneAmplitude sets the reference tone amplitude.
	SetToneAmplitude(amplitude float64)

	// SetToneFrequency sets the reference tone frequency in Hz.
	SetToneFrequency(hz float64)
}

// MixGraph owns the two ear mixers and applies one shared gain to every tap.
//
// The routing table is fixed at construction and read-only afterwards.
type MixGraph struct {
	sink     ParameterSink
	topology Topology
	gains    [NumEars][TapsPerEar]float64
}

// NewMixGraph validates topology and binds it to sink.
//
// Tap gains start at zero; callers apply the startup default with SetGain.
func NewMixGraph(sink ParameterSink, topology Topology) (*MixGraph, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewMixGraph",
	}).Info("Creating mix graph")

	if sink == nil {
		return nil, ErrNilSink
	}
	if err := topology.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewMixGraph",
			"error":    err.Error(),
		}).Error("Topology validation failed")
		return nil, err
	}

	g := &MixGraph{
		sink:     sink,
		topology: topology.Clone(),
	}

	for _, ear := range []Ear{EarLeft, EarRight} {
		for _, r := range g.topology[ear] {
			logrus.WithFields(logrus.Fields{
				"function":       "NewMixGraph",
				"ear":            ear.String(),
				"tap":            r.Tap,
				"source":         r.Source.String(),
				"output_channel": ear.OutputChannel(),
			}).Debug("Route wired")
		}
	}

	return g, nil
}

// SetGain applies g to all six taps. After it returns every tap reads back g.
func (g *MixGraph) SetGain(gain float64) {
	for ear := range g.gains {
		for tap := range g.gains[ear] {
			g.sink.SetTapGain(Ear(ear), tap, gain)
			g.gains[ear][tap] = gain
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "MixGraph.SetGain",
		"gain":     gain,
	}).Debug("Applied gain to all taps")
}

// Gain returns the last gain applied to a tap.
func (g *MixGraph) Gain(ear Ear, tap int) float64 {
	if ear < EarLeft || ear > EarRight || tap < 0 || tap >= TapsPerEar {
		return 0
	}
	return g.gains[ear][tap]
}

// TapGains returns all six tap gains, left ear first, in tap order.
func (g *MixGraph) TapGains() []float64 {
	out := make([]float64, 0, NumTaps)
	for ear := range g.gains {
		out = append(out, g.gains[ear][:]...)
	}
	return out
}

// Topology returns a copy of the routing table.
func (g *MixGraph) Topology() Topology {
	return g.topology.Clone()
}
