package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// EngineConfig holds the parameters of the reference engine.
type EngineConfig struct {
	SampleRate int      // Output sample rate in Hz
	BlockSize  int      // Frames per rendered block
	Topology   Topology // Routing table; nil selects DefaultTopology
}

// EngineStats summarizes rendering since the engine was created.
type EngineStats struct {
	Blocks         uint64
	ClippedSamples uint64
	PeakLeft       float64
	PeakRight      float64
}

// Engine is a host-side reference implementation of the audio runtime.
//
// It pulls four microphone sources and the tone oscillator, mixes them per
// ear through the routing table, runs each ear's effect chain and emits
// interleaved stereo int16 PCM, left ear on channel 0. Engine implements
// ParameterSink; parameters are atomics so the control loop never blocks
// the render path.
type Engine struct {
	sampleRate int
	blockSize  int
	topology   Topology
	mixers     [NumEars]*Mixer
	osc        *Oscillator

	// mu guards sources, chains and scratch buffers against reconfiguration
	// during a render.
	mu      sync.Mutex
	sources [NumMics]MicSource
	chains  [NumEars]*EffectChain
	micBuf  [NumMics][]float32
	toneBuf []float32
	earBuf  [NumEars][]float32
	pcmBuf  [NumEars][]int16

	blocks  atomic.Uint64
	clipped atomic.Uint64
	peaks   [NumEars]atomicFloat64
}

// NewEngine creates a new reference audio engine.
//
// All four microphone channels start silent, tap gains and tone amplitude
// start at zero and both effect chains are empty.
//
// Parameters:
//   - cfg: Sample rate, block size and optional routing table
//
// Returns:
//   - *Engine: New engine instance
//   - error: ErrInvalidEngineConfig or ErrInvalidTopology
func NewEngine(cfg EngineConfig) (*Engine, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "NewEngine",
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
	}).Info("Creating audio engine")

	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewEngine",
			"sample_rate": cfg.SampleRate,
			"block_size":  cfg.BlockSize,
			"error":       "non-positive rate or block size",
		}).Error("Engine configuration validation failed")
		return nil, fmt.Errorf("%w: rate=%d block=%d", ErrInvalidEngineConfig, cfg.SampleRate, cfg.BlockSize)
	}

	topology := cfg.Topology
	if topology == nil {
		topology = DefaultTopology()
	}
	if err := topology.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		sampleRate: cfg.SampleRate,
		blockSize:  cfg.BlockSize,
		topology:   topology.Clone(),
		osc:        NewOscillator(cfg.SampleRate),
		toneBuf:    make([]float32, cfg.BlockSize),
	}
	for ch := range e.sources {
		e.sources[ch] = SilenceSource{}
		e.micBuf[ch] = make([]float32, cfg.BlockSize)
	}
	for ear := range e.mixers {
		e.mixers[ear] = NewMixer(Ear(ear))
		e.chains[ear] = NewEffectChain()
		e.earBuf[ear] = make([]float32, cfg.BlockSize)
		e.pcmBuf[ear] = make([]int16, cfg.BlockSize)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewEngine",
		"sample_rate": e.sampleRate,
		"block_size":  e.blockSize,
	}).Info("Audio engine created successfully")

	return e, nil
}

// SetTapGain implements ParameterSink.
func (e *Engine) SetTapGain(ear Ear, tap int, gain float64) {
	if ear < EarLeft || ear > EarRight {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.SetTapGain",
			"ear":      int(ear),
		}).Warn("Ignoring gain for unknown ear")
		return
	}
	e.mixers[ear].SetGain(tap, gain)
}

// SetToneAmplitude implements ParameterSink.
func (e *Engine) SetToneAmplitude(amplitude float64) { e.osc.SetAmplitude(amplitude) }

// SetToneFrequency implements ParameterSink. Non-finite or non-positive
// frequencies are ignored.
func (e *Engine) SetToneFrequency(hz float64) {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		logrus.WithFields(logrus.Fields{
			"function":  "Engine.SetToneFrequency",
			"frequency": hz,
		}).Warn("Ignoring invalid tone frequency")
		return
	}
	e.osc.SetFrequency(hz)
}

// TapGain returns the gain the engine currently applies to a tap.
func (e *Engine) TapGain(ear Ear, tap int) float64 {
	if ear < EarLeft || ear > EarRight {
		return 0
	}
	return e.mixers[ear].Gain(tap)
}

// ToneAmplitude returns the amplitude the engine currently renders.
func (e *Engine) ToneAmplitude() float64 { return e.osc.Amplitude() }

// ToneFrequency returns the frequency the engine currently renders.
func (e *Engine) ToneFrequency() float64 { return e.osc.Frequency() }

// SampleRate returns the output sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// BlockSize returns the frames per block.
func (e *Engine) BlockSize() int { return e.blockSize }

// SetSource attaches a microphone source to channel ch.
func (e *Engine) SetSource(ch int, src MicSource) error {
	if ch < 0 || ch >= NumMics {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if src == nil {
		src = SilenceSource{}
	}

	e.mu.Lock()
	e.sources[ch] = src
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Engine.SetSource",
		"channel":  ch,
		"source":   fmt.Sprintf("%T", src),
	}).Info("Microphone source attached")
	return nil
}

// AddEffect appends an effect to one ear's output chain.
func (e *Engine) AddEffect(ear Ear, effect AudioEffect) error {
	if ear < EarLeft || ear > EarRight {
		return fmt.Errorf("%w: %s", ErrInvalidTopology, ear)
	}
	e.mu.Lock()
	e.chains[ear].AddEffect(effect)
	e.mu.Unlock()
	return nil
}

// EffectNames returns the names of one ear's output effects in order.
func (e *Engine) EffectNames(ear Ear) []string {
	if ear < EarLeft || ear > EarRight {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chains[ear].GetEffectNames()
}

// RenderBlock renders one block of interleaved stereo PCM.
func (e *Engine) RenderBlock() ([]int16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for ch, src := range e.sources {
		src.Read(e.micBuf[ch])
	}
	e.osc.Read(e.toneBuf)

	var earPCM [NumEars][]int16
	for ear := range e.mixers {
		var inputs [TapsPerEar][]float32
		for _, r := range e.topology[Ear(ear)] {
			if r.Source == SourceTone {
				inputs[r.Tap] = e.toneBuf
			} else {
				inputs[r.Tap] = e.micBuf[r.Source]
			}
		}
		e.mixers[ear].Mix(inputs, e.earBuf[ear])
		e.peaks[ear].Store(peak(e.earBuf[ear]))

		if n := toPCM(e.earBuf[ear], e.pcmBuf[ear]); n > 0 {
			e.clipped.Add(uint64(n))
			logrus.WithFields(logrus.Fields{
				"function":      "Engine.RenderBlock",
				"ear":           Ear(ear).String(),
				"clipped_count": n,
			}).Warn("Audio clipping detected during mix")
		}

		processed, err := e.chains[ear].Process(e.pcmBuf[ear])
		if err != nil {
			return nil, fmt.Errorf("%s ear: %w", Ear(ear), err)
		}
		earPCM[ear] = processed
	}

	out := make([]int16, e.blockSize*NumEars)
	for i := 0; i < e.blockSize; i++ {
		out[i*NumEars+EarLeft.OutputChannel()] = earPCM[EarLeft][i]
		out[i*NumEars+EarRight.OutputChannel()] = earPCM[EarRight][i]
	}

	e.blocks.Add(1)
	return out, nil
}

// Run renders blocks into w as little-endian PCM until ctx is cancelled or w
// fails. A blocking writer such as OutputBuffer paces the loop.
func (e *Engine) Run(ctx context.Context, w io.Writer) error {
	logrus.WithFields(logrus.Fields{
		"function":    "Engine.Run",
		"sample_rate": e.sampleRate,
		"block_size":  e.blockSize,
	}).Info("Audio engine running")

	buf := make([]byte, e.blockSize*NumEars*2)
	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Run",
				"blocks":   e.blocks.Load(),
			}).Info("Audio engine stopped")
			return ctx.Err()
		default:
		}

		block, err := e.RenderBlock()
		if err != nil {
			return err
		}
		for i, s := range block {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write block: %w", err)
		}
	}
}

// Stats returns rendering counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Blocks:         e.blocks.Load(),
		ClippedSamples: e.clipped.Load(),
		PeakLeft:       e.peaks[EarLeft].Load(),
		PeakRight:      e.peaks[EarRight].Load(),
	}
}

// Close releases the effect chains.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for ear := range e.chains {
		if err := e.chains[ear].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
