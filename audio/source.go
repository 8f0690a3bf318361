package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// MicSource produces one microphone channel for the engine.
type MicSource interface {
	// Read fills buf with the next normalized samples in [-1, 1].
	Read(buf []float32)
}

// SilenceSource is a disconnected microphone.
type SilenceSource struct{}

// Read fills buf with zeros.
func (SilenceSource) Read(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// SineSource is a synthetic microphone carrying a pure tone.
type SineSource struct {
	osc *Oscillator
}

// NewSineSource creates a tone source at the engine sample rate.
func NewSineSource(sampleRate int, frequency, amplitude float64) *SineSource {
	osc := NewOscillator(sampleRate)
	osc.SetFrequency(frequency)
	osc.SetAmplitude(amplitude)
	return &SineSource{osc: osc}
}

// Read renders the next samples.
func (s *SineSource) Read(buf []float32) { s.osc.Read(buf) }

// NoiseSource is a synthetic microphone carrying white noise, standing in for
// room ambience during simulation.
type NoiseSource struct {
	rng       *rand.Rand
	amplitude float32
}

// NewNoiseSource creates a seeded white noise source.
func NewNoiseSource(seed int64, amplitude float64) *NoiseSource {
	return &NoiseSource{
		rng:       rand.New(rand.NewSource(seed)),
		amplitude: float32(amplitude),
	}
}

// Read renders the next samples.
func (n *NoiseSource) Read(buf []float32) {
	for i := range buf {
		buf[i] = n.amplitude * (2*n.rng.Float32() - 1)
	}
}

// opusFrameBytes is the decode buffer size: 1920 samples (40ms at 48kHz) of int16.
const opusFrameBytes = 1920 * 2

// MaxOpusPacket bounds one length-prefixed packet.
const MaxOpusPacket = 1275

// OpusSource replays a captured microphone channel from Opus packets.
//
// All packets are decoded up front with the pure Go pion/opus decoder,
// resampled to the engine rate and looped.
type OpusSource struct {
	pcm []float32
	pos int
}

// NewOpusSource decodes packets and resamples them to sampleRate.
func NewOpusSource(packets [][]byte, sampleRate int) (*OpusSource, error) {
	logrus.WithFields(logrus.Fields{
		"function":     "NewOpusSource",
		"packet_count": len(packets),
		"sample_rate":  sampleRate,
	}).Info("Creating Opus microphone source")

	if len(packets) == 0 {
		return nil, ErrNoPackets
	}

	decoder := opus.NewDecoder()
	output := make([]byte, opusFrameBytes)
	var resampler *Resampler
	var pcm []float32

	for i, packet := range packets {
		bandwidth, isStereo, err := decoder.Decode(packet, output)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "NewOpusSource",
				"packet":   i,
				"error":    err.Error(),
			}).Error("Opus decode failed")
			return nil, fmt.Errorf("opus decode packet %d: %w", i, err)
		}

		rate := bandwidth.SampleRate()
		if resampler == nil || resampler.InputRate() != rate {
			resampler, err = NewResampler(rate, sampleRate)
			if err != nil {
				return nil, err
			}
		}

		// One 20ms frame at the decoded rate.
		frame := rate / 50
		stride := 1
		if isStereo {
			stride = 2
		}
		if frame*stride*2 > len(output) {
			frame = len(output) / (stride * 2)
		}

		mono := make([]int16, frame)
		for j := 0; j < frame; j++ {
			off := j * stride * 2
			mono[j] = int16(binary.LittleEndian.Uint16(output[off:]))
		}

		for _, s := range resampler.Resample(mono) {
			pcm = append(pcm, float32(s)/32768.0)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewOpusSource",
		"packet_count": len(packets),
		"samples":      len(pcm),
	}).Info("Opus microphone source ready")

	return &OpusSource{pcm: pcm}, nil
}

// Read renders the next samples, looping at the end of the capture.
func (o *OpusSource) Read(buf []float32) {
	if len(o.pcm) == 0 {
		SilenceSource{}.Read(buf)
		return
	}
	for i := range buf {
		buf[i] = o.pcm[o.pos]
		o.pos++
		if o.pos == len(o.pcm) {
			o.pos = 0
		}
	}
}

// Len returns the decoded capture length in samples.
func (o *OpusSource) Len() int { return len(o.pcm) }

// ReadOpusPackets reads a capture of big-endian uint16 length-prefixed packets
// until EOF.
func ReadOpusPackets(r io.Reader) ([][]byte, error) {
	var packets [][]byte
	var header [2]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read packet header %d: %w", len(packets), err)
		}
		n := int(binary.BigEndian.Uint16(header[:]))
		if n > MaxOpusPacket {
			return nil, fmt.Errorf("%w: packet %d is %d bytes", ErrPacketTooLarge, len(packets), n)
		}
		packet := make([]byte, n)
		if _, err := io.ReadFull(r, packet); err != nil {
			return nil, fmt.Errorf("read packet %d: %w", len(packets), err)
		}
		packets = append(packets, packet)
	}
	if len(packets) == 0 {
		return nil, ErrNoPackets
	}
	return packets, nil
}

// peak returns the largest magnitude in buf.
func peak(buf []float32) float64 {
	var p float64
	for _, s := range buf {
		if a := math.Abs(float64(s)); a > p {
			p = a
		}
	}
	return p
}
