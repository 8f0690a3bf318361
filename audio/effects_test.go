package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompressorEffectValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CompressorConfig)
		wantErr bool
	}{
		{"defaults", func(*CompressorConfig) {}, false},
		{"zero sample rate", func(c *CompressorConfig) { c.SampleRate = 0 }, true},
		{"zero threshold", func(c *CompressorConfig) { c.Threshold = 0 }, true},
		{"threshold above full scale", func(c *CompressorConfig) { c.Threshold = 40000 }, true},
		{"ratio below one", func(c *CompressorConfig) { c.Ratio = 0.5 }, true},
		{"unity ratio", func(c *CompressorConfig) { c.Ratio = 1 }, false},
		{"time too short", func(c *CompressorConfig) { c.TimeMs = 1 }, true},
		{"time too long", func(c *CompressorConfig) { c.TimeMs = 500 }, true},
		{"time at minimum", func(c *CompressorConfig) { c.TimeMs = MinCompressorTimeMs }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCompressorConfig(44100)
			tt.mutate(&cfg)

			c, err := NewCompressorEffect(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEffectParameter)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestCompressorPassesQuietSignal(t *testing.T) {
	c, err := NewCompressorEffect(DefaultCompressorConfig(44100))
	require.NoError(t, err)

	samples := make([]int16, 4410)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1000
		} else {
			samples[i] = -1000
		}
	}
	want := append([]int16(nil), samples...)

	out, err := c.Process(samples)
	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.Less(t, c.Envelope(), DefaultCompressorThreshold)
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c, err := NewCompressorEffect(DefaultCompressorConfig(44100))
	require.NoError(t, err)

	samples := make([]int16, 44100)
	for i := range samples {
		samples[i] = 30000
	}

	out, err := c.Process(samples)
	require.NoError(t, err)

	last := out[len(out)-1]
	assert.Less(t, last, int16(20000))
	assert.Greater(t, last, int16(DefaultCompressorThreshold))
	assert.InDelta(t, 30000, c.Envelope(), 1)
}

func TestCompressorName(t *testing.T) {
	c, err := NewCompressorEffect(DefaultCompressorConfig(48000))
	require.NoError(t, err)
	assert.Equal(t, "Compressor(3.0:1 @ 1950)", c.GetName())
	assert.NoError(t, c.Close())
}

// gainEffect scales samples by a constant factor.
type gainEffect struct {
	name   string
	factor int16
	err    error
	closed bool
}

func (g *gainEffect) Process(samples []int16) ([]int16, error) {
	if g.err != nil {
		return nil, g.err
	}
	for i := range samples {
		samples[i] *= g.factor
	}
	return samples, nil
}

func (g *gainEffect) GetName() string { return g.name }

func (g *gainEffect) Close() error {
	g.closed = true
	return nil
}

func TestEffectChain(t *testing.T) {
	chain := NewEffectChain()
	assert.Equal(t, 0, chain.GetEffectCount())

	double := &gainEffect{name: "double", factor: 2}
	triple := &gainEffect{name: "triple", factor: 3}
	chain.AddEffect(double)
	chain.AddEffect(triple)

	assert.Equal(t, 2, chain.GetEffectCount())
	assert.Equal(t, []string{"double", "triple"}, chain.GetEffectNames())

	out, err := chain.Process([]int16{1, -2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int16{6, -12, 18}, out)

	require.NoError(t, chain.Close())
	assert.True(t, double.closed)
	assert.True(t, triple.closed)
	assert.Equal(t, 0, chain.GetEffectCount())
}

func TestEffectChainStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	chain := NewEffectChain()
	chain.AddEffect(&gainEffect{name: "broken", err: boom})
	after := &gainEffect{name: "after", factor: 2}
	chain.AddEffect(after)

	samples := []int16{5}
	out, err := chain.Process(samples)

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Nil(t, out)
	assert.Equal(t, int16(5), samples[0], "later effects do not run")
}
