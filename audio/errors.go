package audio

import "errors"

// Sentinel errors for audio package operations.
// These errors enable reliable error classification using errors.Is().

// Graph construction errors.
var (
	// ErrInvalidTopology indicates a routing table that does not describe
	// two three-tap mixers fed by four microphones and the tone.
	ErrInvalidTopology = errors.New("invalid mix topology")

	// ErrNilSink indicates a graph or tone generator was created without a sink.
	ErrNilSink = errors.New("parameter sink is nil")

	// ErrInvalidToneFrequency indicates a non-positive or NaN tone frequency.
	ErrInvalidToneFrequency = errors.New("invalid tone frequency")
)

// Engine errors.
var (
	// ErrInvalidChannel indicates a microphone channel index outside 0..3.
	ErrInvalidChannel = errors.New("invalid microphone channel")

	// ErrInvalidEngineConfig indicates a non-positive sample rate or block size.
	ErrInvalidEngineConfig = errors.New("invalid engine configuration")
)

// Source errors.
var (
	// ErrNoPackets indicates an Opus source was created without packets.
	ErrNoPackets = errors.New("no opus packets")

	// ErrPacketTooLarge indicates a length-prefixed packet exceeds MaxOpusPacket.
	ErrPacketTooLarge = errors.New("opus packet too large")
)

// Effect errors.
var (
	// ErrInvalidEffectParameter indicates an effect parameter outside its range.
	ErrInvalidEffectParameter = errors.New("invalid effect parameter")
)

// Output errors.
var (
	// ErrOutputClosed indicates a write to a closed output buffer.
	ErrOutputClosed = errors.New("output buffer closed")
)
