package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures every parameter write.
type recordingSink struct {
	taps      map[Ear]map[int]float64
	writes    int
	amplitude float64
	frequency float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{taps: map[Ear]map[int]float64{EarLeft: {}, EarRight: {}}}
}

func (s *recordingSink) SetTapGain(ear Ear, tap int, gain float64) {
	s.taps[ear][tap] = gain
	s.writes++
}

func (s *recordingSink) SetToneAmplitude(a float64) { s.amplitude = a }

func (s *recordingSink) SetToneFrequency(hz float64) { s.frequency = hz }

func TestDefaultTopologyRouting(t *testing.T) {
	topo := DefaultTopology()
	require.NoError(t, topo.Validate())

	tests := []struct {
		ear  Ear
		tap  int
		want Source
	}{
		{EarLeft, 0, SourceMic0},
		{EarLeft, 1, SourceMic2},
		{EarLeft, 2, SourceTone},
		{EarRight, 0, SourceMic1},
		{EarRight, 1, SourceMic3},
		{EarRight, 2, SourceTone},
	}

	for _, tt := range tests {
		got, ok := topo.SourceAt(tt.ear, tt.tap)
		require.True(t, ok, "%s tap %d", tt.ear, tt.tap)
		assert.Equal(t, tt.want, got, "%s tap %d", tt.ear, tt.tap)
	}

	assert.Equal(t, 0, EarLeft.OutputChannel())
	assert.Equal(t, 1, EarRight.OutputChannel())
}

func TestTopologyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Topology)
	}{
		{"missing ear", func(tp Topology) { delete(tp, EarRight) }},
		{"extra tap", func(tp Topology) {
			tp[EarLeft] = append(tp[EarLeft], Route{Source: SourceMic1, Tap: 3})
		}},
		{"duplicate tap", func(tp Topology) { tp[EarLeft][1].Tap = 0 }},
		{"tap out of range", func(tp Topology) { tp[EarLeft][1].Tap = 5 }},
		{"mic used twice", func(tp Topology) { tp[EarRight][0].Source = SourceMic0 }},
		{"no tone", func(tp Topology) { tp[EarRight][2].Source = SourceMic1 }},
		{"unknown source", func(tp Topology) { tp[EarLeft][0].Source = Source(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := DefaultTopology()
			tt.mutate(topo)
			assert.ErrorIs(t, topo.Validate(), ErrInvalidTopology)
		})
	}
}

func TestNewMixGraphErrors(t *testing.T) {
	_, err := NewMixGraph(nil, DefaultTopology())
	assert.ErrorIs(t, err, ErrNilSink)

	_, err = NewMixGraph(newRecordingSink(), Topology{})
	assert.ErrorIs(t, err, ErrInvalidTopology)
}

func TestMixGraphSetGainAppliesToAllTaps(t *testing.T) {
	sink := newRecordingSink()
	graph, err := NewMixGraph(sink, DefaultTopology())
	require.NoError(t, err)

	for _, g := range []float64{0.0, 0.01, 0.49, 0.5, 1.0} {
		graph.SetGain(g)

		gains := graph.TapGains()
		require.Len(t, gains, NumTaps)
		for i, got := range gains {
			assert.Equal(t, g, got, "tap %d after SetGain(%v)", i, g)
		}
		for _, ear := range []Ear{EarLeft, EarRight} {
			for tap := 0; tap < TapsPerEar; tap++ {
				assert.Equal(t, g, sink.taps[ear][tap], "sink %s tap %d", ear, tap)
				assert.Equal(t, g, graph.Gain(ear, tap))
			}
		}
	}
}

func TestMixGraphSetGainIdempotent(t *testing.T) {
	sink := newRecordingSink()
	graph, err := NewMixGraph(sink, DefaultTopology())
	require.NoError(t, err)

	graph.SetGain(0.37)
	first := graph.TapGains()
	graph.SetGain(0.37)

	assert.Equal(t, first, graph.TapGains())
	assert.Equal(t, 2*NumTaps, sink.writes)
}

func TestMixGraphTopologyIsCopy(t *testing.T) {
	graph, err := NewMixGraph(newRecordingSink(), DefaultTopology())
	require.NoError(t, err)

	topo := graph.Topology()
	topo[EarLeft][0].Source = SourceMic3

	src, ok := graph.Topology().SourceAt(EarLeft, 0)
	require.True(t, ok)
	assert.Equal(t, SourceMic0, src)
}

func TestMixGraphGainOutOfRange(t *testing.T) {
	graph, err := NewMixGraph(newRecordingSink(), DefaultTopology())
	require.NoError(t, err)
	graph.SetGain(0.8)

	assert.Equal(t, 0.0, graph.Gain(Ear(7), 0))
	assert.Equal(t, 0.0, graph.Gain(EarLeft, TapsPerEar))
}

func TestSourceAndEarNames(t *testing.T) {
	assert.Equal(t, "mic2", SourceMic2.String())
	assert.Equal(t, "tone", SourceTone.String())
	assert.Equal(t, "left", EarLeft.String())
	assert.Equal(t, "right", EarRight.String())
}
