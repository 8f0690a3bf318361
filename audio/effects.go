package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// AudioEffect defines the interface for per-ear output processing.
//
// Effects process one ear's PCM block in-place or return a new slice.
// They are chained per ear by the engine after mixing.
type AudioEffect interface {
	// Process applies the effect to PCM audio samples.
	Process(samples []int16) ([]int16, error)

	// GetName returns a human-readable name for the effect.
	GetName() string

	// Close releases any resources used by the effect.
	Close() error
}

// CompressorConfig holds the parameters of a CompressorEffect.
type CompressorConfig struct {
	SampleRate int     // Engine sample rate in Hz
	Threshold  float64 // Envelope level (int16 magnitude) above which compression starts
	Ratio      float64 // Compression ratio above threshold, e.g. 3.0 for 3:1
	TimeMs     float64 // Attack/release time constant in milliseconds
}

// Compression defaults tuned for speech on a 16-bit path.
const (
	DefaultCompressorThreshold = 1950.0
	DefaultCompressorRatio     = 3.0
	DefaultCompressorTimeMs    = 50.0

	MinCompressorTimeMs = 5.0
	MaxCompressorTimeMs = 200.0
)

// DefaultCompressorConfig returns the defaults for sampleRate.
func DefaultCompressorConfig(sampleRate int) CompressorConfig {
	return CompressorConfig{
		SampleRate: sampleRate,
		Threshold:  DefaultCompressorThreshold,
		Ratio:      DefaultCompressorRatio,
		TimeMs:     DefaultCompressorTimeMs,
	}
}

// CompressorEffect is a feed-forward dynamic range compressor.
//
// An envelope follower tracks the sample magnitude with one smoothing
// coefficient for both attack and release. Above the threshold the excess
// level is divided by the ratio.
type CompressorEffect struct {
	threshold float64
	ratio     float64
	timeMs    float64
	coeff     float64
	envelope  float64
}

// NewCompressorEffect creates a new dynamic range compressor.
//
// The envelope smoothing coefficient is derived from the time constant and
// the sample rate, so one setting covers both attack and release.
//
// Parameters:
//   - cfg: Compressor configuration (threshold in int16 magnitude, ratio >= 1,
//     time constant between MinCompressorTimeMs and MaxCompressorTimeMs)
//
// Returns:
//   - *CompressorEffect: New compressor instance
//   - error: ErrInvalidEffectParameter if any field is out of range
func NewCompressorEffect(cfg CompressorConfig) (*CompressorEffect, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "NewCompressorEffect",
		"sample_rate": cfg.SampleRate,
		"threshold":   cfg.Threshold,
		"ratio":       cfg.Ratio,
		"time_ms":     cfg.TimeMs,
	}).Info("Creating compressor effect")

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidEffectParameter, cfg.SampleRate)
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 32767 {
		return nil, fmt.Errorf("%w: threshold %f", ErrInvalidEffectParameter, cfg.Threshold)
	}
	if cfg.Ratio < 1 {
		return nil, fmt.Errorf("%w: ratio %f below 1", ErrInvalidEffectParameter, cfg.Ratio)
	}
	if cfg.TimeMs < MinCompressorTimeMs || cfg.TimeMs > MaxCompressorTimeMs {
		return nil, fmt.Errorf("%w: time %fms not in [%.0f, %.0f]",
			ErrInvalidEffectParameter, cfg.TimeMs, MinCompressorTimeMs, MaxCompressorTimeMs)
	}

	return &CompressorEffect{
		threshold: cfg.Threshold,
		ratio:     cfg.Ratio,
		timeMs:    cfg.TimeMs,
		coeff:     1.0 / (cfg.TimeMs / 1000.0 * float64(cfg.SampleRate)),
	}, nil
}

// Process applies compression to audio samples.
//
// Tracks the signal envelope sample by sample. Above the threshold the excess
// level is divided by the ratio; the result is clipped to +/-32767.
//
// Parameters:
//   - samples: PCM samples of one ear, modified in place
//
// Returns:
//   - []int16: The compressed samples (same backing array)
//   - error: Always nil
func (c *CompressorEffect) Process(samples []int16) ([]int16, error) {
	for i, s := range samples {
		mag := math.Abs(float64(s))
		c.envelope += c.coeff * (mag - c.envelope)

		gain := 1.0
		if c.envelope > c.threshold {
			over := c.envelope / c.threshold
			compressed := 1.0 + (over-1.0)/c.ratio
			gain = c.threshold * compressed / c.envelope
		}

		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32767 {
			v = -32767
		}
		samples[i] = int16(v)
	}
	return samples, nil
}

// Envelope returns the current envelope level.
func (c *CompressorEffect) Envelope() float64 { return c.envelope }

// GetName returns the effect name for debugging and logging.
func (c *CompressorEffect) GetName() string {
	return fmt.Sprintf("Compressor(%.1f:1 @ %.0f)", c.ratio, c.threshold)
}

// Close releases effect resources (no-op for the compressor).
func (c *CompressorEffect) Close() error { return nil }

// EffectChain manages a sequence of audio effects.
//
// Effects are applied in the order they are added. An error stops
// processing and is returned immediately.
type EffectChain struct {
	effects []AudioEffect
}

// NewEffectChain creates an empty chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{
		effects: make([]AudioEffect, 0),
	}
}

// AddEffect appends an effect to the chain.
func (e *EffectChain) AddEffect(effect AudioEffect) {
	logrus.WithFields(logrus.Fields{
		"function":     "EffectChain.AddEffect",
		"effect_name":  effect.GetName(),
		"new_position": len(e.effects),
	}).Info("Adding effect to audio chain")

	e.effects = append(e.effects, effect)
}

// Process applies all effects in the chain sequentially.
//
// Each effect receives the output of the previous one. Processing stops at
// the first failing effect.
//
// Parameters:
//   - samples: Input PCM samples
//
// Returns:
//   - []int16: Samples after the last effect
//   - error: The first effect error, wrapped with its index and name
func (e *EffectChain) Process(samples []int16) ([]int16, error) {
	current := samples
	for i, effect := range e.effects {
		processed, err := effect.Process(current)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "EffectChain.Process",
				"effect_index": i,
				"effect_name":  effect.GetName(),
				"error":        err.Error(),
			}).Error("Effect processing failed")
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, effect.GetName(), err)
		}
		current = processed
	}
	return current, nil
}

// GetEffectCount returns the number of effects in the chain.
func (e *EffectChain) GetEffectCount() int { return len(e.effects) }

// GetEffectNames returns the names of all effects in the chain.
func (e *EffectChain) GetEffectNames() []string {
	names := make([]string, len(e.effects))
	for i, effect := range e.effects {
		names[i] = effect.GetName()
	}
	return names
}

// Close closes every effect and empties the chain.
func (e *EffectChain) Close() error {
	var errs []error
	for i, effect := range e.effects {
		if err := effect.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "EffectChain.Close",
				"effect_index": i,
				"effect_name":  effect.GetName(),
				"error":        err.Error(),
			}).Error("Failed to close effect")
			errs = append(errs, fmt.Errorf("effect %d (%s) close failed: %w", i, effect.GetName(), err))
		}
	}
	e.effects = e.effects[:0]

	if len(errs) > 0 {
		return fmt.Errorf("multiple close errors: %v", errs)
	}
	return nil
}
