package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceSource(t *testing.T) {
	buf := []float32{1, 2, 3}
	SilenceSource{}.Read(buf)
	assert.Equal(t, []float32{0, 0, 0}, buf)
}

func TestSineSource(t *testing.T) {
	src := NewSineSource(44100, 1000, 0.3)
	buf := make([]float32, 441)
	src.Read(buf)
	assert.InDelta(t, 0.3, peak(buf), 0.005)
}

func TestNoiseSourceDeterministic(t *testing.T) {
	a := NewNoiseSource(42, 0.2)
	b := NewNoiseSource(42, 0.2)

	bufA := make([]float32, 256)
	bufB := make([]float32, 256)
	a.Read(bufA)
	b.Read(bufB)

	assert.Equal(t, bufA, bufB)
	assert.LessOrEqual(t, peak(bufA), 0.2+1e-6)
	assert.Greater(t, peak(bufA), 0.0)
}

func TestOpusSourceLoops(t *testing.T) {
	src := &OpusSource{pcm: []float32{0.1, 0.2, 0.3}}
	buf := make([]float32, 7)
	src.Read(buf)

	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1}, buf)
	assert.Equal(t, 3, src.Len())
}

func TestOpusSourceEmptyCaptureIsSilent(t *testing.T) {
	src := &OpusSource{}
	buf := []float32{1, 1}
	src.Read(buf)
	assert.Equal(t, []float32{0, 0}, buf)
}

func TestNewOpusSourceErrors(t *testing.T) {
	_, err := NewOpusSource(nil, 44100)
	assert.ErrorIs(t, err, ErrNoPackets)

	_, err = NewOpusSource([][]byte{{}}, 44100)
	assert.Error(t, err, "empty packet has no TOC byte")
}

func framePackets(packets ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range packets {
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(len(p)))
		buf.Write(header[:])
		buf.Write(p)
	}
	return buf.Bytes()
}

func TestReadOpusPackets(t *testing.T) {
	data := framePackets([]byte{0x08, 0x01}, []byte{0x08}, []byte{0x0b, 0x02, 0x03})

	packets, err := ReadOpusPackets(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x08, 0x01}, {0x08}, {0x0b, 0x02, 0x03}}, packets)
}

func TestReadOpusPacketsErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ReadOpusPackets(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrNoPackets)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := ReadOpusPackets(bytes.NewReader([]byte{0xff, 0xff}))
		assert.ErrorIs(t, err, ErrPacketTooLarge)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := ReadOpusPackets(bytes.NewReader([]byte{0x00, 0x04, 0x01}))
		assert.Error(t, err)
	})

	t.Run("truncated header", func(t *testing.T) {
		data := append(framePackets([]byte{0x08}), 0x00)
		_, err := ReadOpusPackets(bytes.NewReader(data))
		assert.Error(t, err)
	})
}
