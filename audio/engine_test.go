package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ParameterSink = (*Engine)(nil)

// constSource emits a fixed level.
type constSource float32

func (c constSource) Read(buf []float32) {
	for i := range buf {
		buf[i] = float32(c)
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{SampleRate: 44100, BlockSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func channel(block []int16, ear Ear) []int16 {
	out := make([]int16, 0, len(block)/NumEars)
	for i := ear.OutputChannel(); i < len(block); i += NumEars {
		out = append(out, block[i])
	}
	return out
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(EngineConfig{SampleRate: 0, BlockSize: 64})
	assert.ErrorIs(t, err, ErrInvalidEngineConfig)

	_, err = NewEngine(EngineConfig{SampleRate: 44100, BlockSize: 0})
	assert.ErrorIs(t, err, ErrInvalidEngineConfig)

	bad := DefaultTopology()
	delete(bad, EarLeft)
	_, err = NewEngine(EngineConfig{SampleRate: 44100, BlockSize: 64, Topology: bad})
	assert.ErrorIs(t, err, ErrInvalidTopology)
}

func TestEngineParameters(t *testing.T) {
	e := newTestEngine(t)

	e.SetTapGain(EarRight, 2, 0.75)
	assert.Equal(t, 0.75, e.TapGain(EarRight, 2))
	assert.Equal(t, 0.0, e.TapGain(EarLeft, 2))

	e.SetTapGain(Ear(5), 0, 1)
	assert.Equal(t, 0.0, e.TapGain(Ear(5), 0))

	e.SetToneFrequency(500)
	e.SetToneFrequency(-3)
	assert.Equal(t, 500.0, e.ToneFrequency())

	e.SetToneAmplitude(0.1)
	assert.Equal(t, 0.1, e.ToneAmplitude())

	assert.Equal(t, 44100, e.SampleRate())
	assert.Equal(t, 64, e.BlockSize())
}

func TestEngineRoutesMicsToEars(t *testing.T) {
	tests := []struct {
		mic      int
		ear      Ear
		silenced Ear
	}{
		{0, EarLeft, EarRight},
		{1, EarRight, EarLeft},
		{2, EarLeft, EarRight},
		{3, EarRight, EarLeft},
	}

	for _, tt := range tests {
		e := newTestEngine(t)
		graph, err := NewMixGraph(e, DefaultTopology())
		require.NoError(t, err)
		graph.SetGain(0.5)
		require.NoError(t, e.SetSource(tt.mic, constSource(0.4)))

		block, err := e.RenderBlock()
		require.NoError(t, err)
		require.Len(t, block, 64*NumEars)

		for _, s := range channel(block, tt.ear) {
			assert.Equal(t, int16(6553), s, "mic%d on %s", tt.mic, tt.ear)
		}
		for _, s := range channel(block, tt.silenced) {
			assert.Equal(t, int16(0), s, "mic%d leaked to %s", tt.mic, tt.silenced)
		}
	}
}

func TestEngineToneReachesBothEars(t *testing.T) {
	e := newTestEngine(t)
	graph, err := NewMixGraph(e, DefaultTopology())
	require.NoError(t, err)
	tone, err := NewToneGenerator(e, 500)
	require.NoError(t, err)
	graph.SetGain(1.0)

	block, err := e.RenderBlock()
	require.NoError(t, err)
	for _, s := range block {
		assert.Equal(t, int16(0), s, "tone is silent at amplitude 0")
	}

	tone.SetAmplitude(0.1)
	block, err = e.RenderBlock()
	require.NoError(t, err)

	left, right := channel(block, EarLeft), channel(block, EarRight)
	assert.Equal(t, left, right)
	nonZero := false
	for _, s := range left {
		assert.LessOrEqual(t, s, int16(3277))
		assert.GreaterOrEqual(t, s, int16(-3277))
		if s != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
	assert.InDelta(t, 0.1, e.Stats().PeakLeft, 0.02)
}

func TestEngineCountsClipping(t *testing.T) {
	e := newTestEngine(t)
	graph, err := NewMixGraph(e, DefaultTopology())
	require.NoError(t, err)
	graph.SetGain(1.0)
	require.NoError(t, e.SetSource(0, constSource(0.8)))
	require.NoError(t, e.SetSource(2, constSource(0.8)))

	block, err := e.RenderBlock()
	require.NoError(t, err)

	for _, s := range channel(block, EarLeft) {
		assert.Equal(t, int16(32767), s)
	}
	stats := e.Stats()
	assert.Equal(t, uint64(64), stats.ClippedSamples)
	assert.Equal(t, uint64(1), stats.Blocks)
	assert.InDelta(t, 1.6, stats.PeakLeft, 1e-6)
	assert.Equal(t, 0.0, stats.PeakRight)
}

func TestEngineSetSourceInvalidChannel(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.SetSource(-1, SilenceSource{}), ErrInvalidChannel)
	assert.ErrorIs(t, e.SetSource(NumMics, SilenceSource{}), ErrInvalidChannel)
	assert.NoError(t, e.SetSource(0, nil))
}

func TestEngineEffects(t *testing.T) {
	e := newTestEngine(t)
	graph, err := NewMixGraph(e, DefaultTopology())
	require.NoError(t, err)
	graph.SetGain(0.5)
	require.NoError(t, e.SetSource(0, constSource(0.1)))
	require.NoError(t, e.SetSource(1, constSource(0.1)))

	require.NoError(t, e.AddEffect(EarLeft, &gainEffect{name: "double", factor: 2}))
	assert.ErrorIs(t, e.AddEffect(Ear(4), &gainEffect{name: "x"}), ErrInvalidTopology)

	assert.Equal(t, []string{"double"}, e.EffectNames(EarLeft))
	assert.Empty(t, e.EffectNames(EarRight))
	assert.Nil(t, e.EffectNames(Ear(4)))

	block, err := e.RenderBlock()
	require.NoError(t, err)

	left, right := channel(block, EarLeft), channel(block, EarRight)
	assert.Equal(t, 2*right[0], left[0])
}

func TestEngineEffectFailure(t *testing.T) {
	e := newTestEngine(t)
	boom := errors.New("boom")
	require.NoError(t, e.AddEffect(EarRight, &gainEffect{name: "broken", err: boom}))

	_, err := e.RenderBlock()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "right ear")
}

// cancelWriter cancels the context after a number of writes.
type cancelWriter struct {
	bytes.Buffer
	writes int
	after  int
	cancel context.CancelFunc
}

func (w *cancelWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes == w.after {
		w.cancel()
	}
	return w.Buffer.Write(p)
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	w := &cancelWriter{after: 3, cancel: cancel}

	err := e.Run(ctx, w)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, w.writes)
	assert.Equal(t, 3*64*NumEars*2, w.Len())
	assert.Equal(t, uint64(3), e.Stats().Blocks)
}

func TestEngineRunWriteError(t *testing.T) {
	e := newTestEngine(t)
	out := NewOutputBuffer(64)
	require.NoError(t, out.Close())

	err := e.Run(context.Background(), out)
	assert.ErrorIs(t, err, ErrOutputClosed)
}
