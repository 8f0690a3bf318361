// Package audio provides the signal graph of the hearmix hearing-assistance
// device and a host-side reference audio engine.
//
// # Architecture Overview
//
// Four microphone channels and one reference tone feed two summing mixers,
// one per ear:
//
//	mic0 ─┐                    mic1 ─┐
//	mic2 ─┼─ left mixer → ch0  mic3 ─┼─ right mixer → ch1
//	tone ─┘                    tone ─┘
//
// The wiring is a declarative Topology built once at startup. MixGraph owns
// it and applies one shared gain to all six taps. ToneGenerator owns the tone
// frequency and amplitude. Both write through a ParameterSink, the control
// surface of whatever engine renders the audio.
//
// # Core Components
//
// ## MixGraph
//
//	graph, err := audio.NewMixGraph(engine, audio.DefaultTopology())
//	graph.SetGain(0.5)
//	gains := graph.TapGains() // six values, all 0.5
//
// ## ToneGenerator
//
//	tone, err := audio.NewToneGenerator(engine, 500)
//	tone.SetAmplitude(0.1)
//
// ## Engine
//
// The reference engine implements ParameterSink and renders interleaved
// stereo int16 PCM. Microphone sources are pluggable:
//
//	engine, err := audio.NewEngine(audio.EngineConfig{SampleRate: 44100, BlockSize: 128})
//	engine.SetSource(0, audio.NewSineSource(44100, 440, 0.3))
//	engine.SetSource(1, opusSource)
//	go engine.Run(ctx, audio.NewOutputBuffer(16384))
//
// Sources:
//
//   - SilenceSource: a disconnected microphone
//   - SineSource: a synthetic pure tone
//   - NoiseSource: seeded white noise
//   - OpusSource: a captured channel replayed from Opus packets
//
// Each ear has an EffectChain that runs after mixing. CompressorEffect is an
// envelope-follower dynamic range compressor for that chain.
//
// # Thread Safety
//
// The control loop is the single writer of tap gains and tone parameters; the
// engine is the single reader. Parameters are atomics, so neither side locks.
// MixGraph and ToneGenerator themselves are owned by the control loop and are
// not safe for concurrent use.
//
// # Dependencies
//
//   - github.com/pion/opus: pure Go Opus decoder for captured microphone input
//   - github.com/smallnest/ringbuffer: byte ring between engine and backend
//   - github.com/sirupsen/logrus: structured logging
package audio
