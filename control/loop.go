package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/hearmix/audio"
	"github.com/opd-ai/hearmix/hal"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
)

// LoopConfig wires the control loop to its inputs, outputs and audio graph.
type LoopConfig struct {
	Gain      *GainControl
	Button    *ModeButton
	Indicator hal.DigitalOutput
	MicSelect hal.DigitalOutput
	Graph     *audio.MixGraph
	Tone      *audio.ToneGenerator
	Pacer     Pacer

	// GainPollEvery reads the potentiometer on every Nth cycle only; other
	// cycles reuse the last gain. Zero means every cycle.
	GainPollEvery int

	// DefaultGain is applied to all taps by Init. Zero starts the device muted.
	DefaultGain float64

	// ToneOnAmplitude is the tone level while the button is held. Zero keeps
	// the tone silent in both modes.
	ToneOnAmplitude float64

	// Clock stamps each Status. Nil selects time.Now.
	Clock func() time.Time
}

// DefaultLoopConfig returns a LoopConfig carrying the device defaults from
// limits. Callers fill in the components.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		GainPollEvery:   1,
		DefaultGain:     limits.DefaultGain,
		ToneOnAmplitude: limits.ToneOnAmplitude,
	}
}

// Loop is the device control loop. Cycle and Run must be called from one
// goroutine; Snapshot may be called from any.
type Loop struct {
	gain      *GainControl
	button    *ModeButton
	indicator hal.DigitalOutput
	micSelect hal.DigitalOutput
	graph     *audio.MixGraph
	tone      *audio.ToneGenerator
	pacer     Pacer

	pollEvery   int
	defaultGain float64
	toneOn      float64
	clock       func() time.Time

	initialized bool
	cycle       uint64
	lastGain    float64
	lastMode    Mode

	mu        sync.RWMutex
	status    Status
	callbacks []func(Status)
}

// NewLoop creates a new control loop.
//
// All components and both outputs are required. DefaultGain and
// ToneOnAmplitude are used as given, so start from DefaultLoopConfig for the
// device defaults. Call Init before Cycle.
//
// Parameters:
//   - cfg: Loop wiring and settings
//
// Returns:
//   - *Loop: New control loop instance
//   - error: ErrNilComponent, ErrNilOutput or ErrInvalidConfig
func NewLoop(cfg LoopConfig) (*Loop, error) {
	logrus.WithFields(logrus.Fields{
		"function":        "NewLoop",
		"gain_poll_every": cfg.GainPollEvery,
	}).Info("Creating control loop")

	if cfg.Gain == nil || cfg.Button == nil || cfg.Graph == nil || cfg.Tone == nil || cfg.Pacer == nil {
		return nil, ErrNilComponent
	}
	if cfg.Indicator == nil || cfg.MicSelect == nil {
		return nil, ErrNilOutput
	}
	if cfg.GainPollEvery < 0 {
		return nil, fmt.Errorf("%w: gain poll every %d", ErrInvalidConfig, cfg.GainPollEvery)
	}

	l := &Loop{
		gain:        cfg.Gain,
		button:      cfg.Button,
		indicator:   cfg.Indicator,
		micSelect:   cfg.MicSelect,
		graph:       cfg.Graph,
		tone:        cfg.Tone,
		pacer:       cfg.Pacer,
		pollEvery:   cfg.GainPollEvery,
		defaultGain: cfg.DefaultGain,
		toneOn:      cfg.ToneOnAmplitude,
		clock:       cfg.Clock,
	}
	if l.pollEvery == 0 {
		l.pollEvery = 1
	}
	if l.clock == nil {
		l.clock = time.Now
	}

	if err := limits.ValidateGain(l.defaultGain); err != nil {
		return nil, fmt.Errorf("%w: default gain: %v", ErrInvalidConfig, err)
	}
	if err := limits.ValidateGain(l.toneOn); err != nil {
		return nil, fmt.Errorf("%w: tone amplitude: %v", ErrInvalidConfig, err)
	}

	return l, nil
}

// Init configures pin directions and applies the startup state: all taps at
// the default gain, tone silent, indicator off and mic-select low.
func (l *Loop) Init() error {
	for _, pin := range []struct {
		name string
		pin  interface{}
		dir  hal.Direction
	}{
		{"indicator", l.indicator, hal.DirectionOutput},
		{"mic_select", l.micSelect, hal.DirectionOutput},
	} {
		if err := hal.Configure(pin.pin, pin.dir); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Loop.Init",
				"pin":      pin.name,
				"error":    err.Error(),
			}).Error("Pin configuration failed")
			return fmt.Errorf("%s: %w", pin.name, err)
		}
	}
	if err := l.gain.Configure(); err != nil {
		return fmt.Errorf("gain: %w", err)
	}
	if err := l.button.Configure(); err != nil {
		return fmt.Errorf("button: %w", err)
	}

	l.graph.SetGain(l.defaultGain)
	l.tone.SetAmplitude(limits.ToneOffAmplitude)
	l.indicator.Set(false)
	l.micSelect.Set(false)

	l.lastGain = l.defaultGain
	l.lastMode = ModeQuiet
	l.initialized = true
	l.publish(Status{
		Gain:          l.defaultGain,
		Mode:          ModeQuiet,
		ToneAmplitude: limits.ToneOffAmplitude,
		Time:          l.clock(),
	})

	logrus.WithFields(logrus.Fields{
		"function":     "Loop.Init",
		"default_gain": l.defaultGain,
		"tone_on":      l.toneOn,
		"interval":     l.pacer.Interval().String(),
	}).Info("Control loop initialized")
	return nil
}

// Cycle runs one control cycle.
//
// Drives mic-select low, samples the gain potentiometer (every
// GainPollEvery cycles), waits one pacer interval for the analog front end to
// settle, applies the mapped gain to all taps, then sets the indicator and
// tone amplitude from the button. The resulting Status is published to
// Snapshot and OnCycle callbacks.
//
// Parameters:
//   - ctx: Cancels the settling wait
//
// Returns:
//   - error: ErrNotInitialized before Init, or ctx's error if cancelled
//     during the wait, in which case nothing from this cycle is applied
func (l *Loop) Cycle(ctx context.Context) error {
	if !l.initialized {
		return ErrNotInitialized
	}

	l.micSelect.Set(false)

	poll := l.cycle%uint64(l.pollEvery) == 0
	var raw uint16
	if poll {
		raw = l.gain.Sample()
	} else {
		raw = l.gain.RawGain()
	}

	if err := l.pacer.Wait(ctx); err != nil {
		return err
	}

	gain := l.lastGain
	if poll {
		gain = MapRawGain(raw)
	}
	l.graph.SetGain(gain)

	mode := ModeFromButton(l.button.IsPressed())
	amplitude := limits.ToneOffAmplitude
	if mode == ModeToneActive {
		amplitude = l.toneOn
	}
	l.indicator.Set(mode == ModeToneActive)
	l.tone.SetAmplitude(amplitude)

	if mode != l.lastMode {
		logrus.WithFields(logrus.Fields{
			"function": "Loop.Cycle",
			"cycle":    l.cycle,
			"old_mode": l.lastMode.String(),
			"new_mode": mode.String(),
		}).Info("Mode changed")
	}

	l.lastGain = gain
	l.lastMode = mode
	l.cycle++

	status := Status{
		Cycle:         l.cycle,
		RawGain:       raw,
		Gain:          gain,
		Mode:          mode,
		Indicator:     mode == ModeToneActive,
		ToneAmplitude: amplitude,
		Time:          l.clock(),
	}
	logrus.WithFields(logrus.Fields{
		"function":       "Loop.Cycle",
		"cycle":          status.Cycle,
		"raw_gain":       raw,
		"gain":           gain,
		"mode":           mode.String(),
		"tone_amplitude": amplitude,
	}).Debug("Control cycle applied")

	l.publish(status)
	return nil
}

// Run initializes the loop if needed and repeats Cycle until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.initialized {
		if err := l.Init(); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Loop.Run",
		"interval": l.pacer.Interval().String(),
	}).Info("Control loop running")

	for {
		if err := l.Cycle(ctx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Loop.Run",
				"cycles":   l.cycle,
				"reason":   err.Error(),
			}).Info("Control loop stopped")
			return err
		}
	}
}

// Snapshot returns the state applied by the last cycle, or the startup state
// after Init.
func (l *Loop) Snapshot() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// OnCycle registers cb to receive the Status of every completed cycle.
// Callbacks run on the loop goroutine and must not block.
func (l *Loop) OnCycle(cb func(Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

func (l *Loop) publish(s Status) {
	l.mu.Lock()
	l.status = s
	callbacks := make([]func(Status), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(s)
	}
}
