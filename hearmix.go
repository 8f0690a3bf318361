package hearmix

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/opd-ai/hearmix/audio"
	"github.com/opd-ai/hearmix/control"
	"github.com/opd-ai/hearmix/hal"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidOptions indicates an Options field outside its range.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrMissingHardware indicates a Hardware field is nil.
	ErrMissingHardware = errors.New("missing hardware")
)

// Options contains the configuration of a Device.
type Options struct {
	SampleRate           int
	BlockSize            int
	ToneFrequency        float64
	ToneOnAmplitude      float64
	DefaultGain          float64
	CycleInterval        time.Duration
	ClampRawGain         bool
	ButtonDebounceCycles int
	GainPollEvery        int

	// Compression enables the per-ear output compressor. SampleRate is
	// taken from Options.
	Compression *audio.CompressorConfig

	// Topology overrides the routing table; nil selects the default wiring.
	Topology audio.Topology

	// Pacer overrides the cycle pacer; nil creates a ticker at CycleInterval.
	Pacer control.Pacer
}

// NewOptions creates Options with the device defaults.
func NewOptions() *Options {
	return &Options{
		SampleRate:           limits.SampleRate,
		BlockSize:            limits.BlockSize,
		ToneFrequency:        limits.ToneFrequencyHz,
		ToneOnAmplitude:      limits.ToneOnAmplitude,
		DefaultGain:          limits.DefaultGain,
		CycleInterval:        limits.CycleInterval,
		ClampRawGain:         true,
		ButtonDebounceCycles: 0, // Button is sampled raw
		GainPollEvery:        1,
	}
}

// Validate checks every field.
func (o *Options) Validate() error {
	switch {
	case o.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidOptions, o.SampleRate)
	case o.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidOptions, o.BlockSize)
	case o.ToneFrequency <= 0 || math.IsNaN(o.ToneFrequency) || o.ToneFrequency >= float64(o.SampleRate)/2:
		return fmt.Errorf("%w: tone frequency %v", ErrInvalidOptions, o.ToneFrequency)
	case o.ButtonDebounceCycles < 0:
		return fmt.Errorf("%w: debounce %d", ErrInvalidOptions, o.ButtonDebounceCycles)
	case o.GainPollEvery < 1:
		return fmt.Errorf("%w: gain poll every %d", ErrInvalidOptions, o.GainPollEvery)
	}
	if err := limits.ValidateGain(o.ToneOnAmplitude); err != nil {
		return fmt.Errorf("%w: tone amplitude: %v", ErrInvalidOptions, err)
	}
	if err := limits.ValidateGain(o.DefaultGain); err != nil {
		return fmt.Errorf("%w: default gain: %v", ErrInvalidOptions, err)
	}
	if o.Pacer == nil {
		if err := limits.ValidateInterval(o.CycleInterval); err != nil {
			return fmt.Errorf("%w: cycle interval: %v", ErrInvalidOptions, err)
		}
	}
	if o.Topology != nil {
		if err := o.Topology.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return nil
}

// Hardware is the set of peripherals the device drives.
type Hardware struct {
	Gain      hal.AnalogInput
	Button    hal.DigitalInput
	Indicator hal.DigitalOutput
	MicSelect hal.DigitalOutput
}

func (hw Hardware) validate() error {
	switch {
	case hw.Gain == nil:
		return fmt.Errorf("%w: gain input", ErrMissingHardware)
	case hw.Button == nil:
		return fmt.Errorf("%w: button input", ErrMissingHardware)
	case hw.Indicator == nil:
		return fmt.Errorf("%w: indicator output", ErrMissingHardware)
	case hw.MicSelect == nil:
		return fmt.Errorf("%w: mic select output", ErrMissingHardware)
	}
	return nil
}

// Device is a complete hearing-assistance unit: the reference audio engine,
// its mix graph and tone, and the control loop driving them.
type Device struct {
	options *Options
	engine  *audio.Engine
	graph   *audio.MixGraph
	tone    *audio.ToneGenerator
	loop    *control.Loop
	ticker  *control.TickerPacer
}

// New builds and initializes a device. On return the startup state is
// applied: all taps at DefaultGain, tone silent, indicator off.
func New(options *Options, hw Hardware) (*Device, error) {
	if options == nil {
		options = NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":       "New",
		"sample_rate":    options.SampleRate,
		"block_size":     options.BlockSize,
		"cycle_interval": options.CycleInterval.String(),
		"compression":    options.Compression != nil,
	}).Info("Creating device")

	if err := options.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Options validation failed")
		return nil, err
	}
	if err := hw.validate(); err != nil {
		return nil, err
	}

	engine, err := audio.NewEngine(audio.EngineConfig{
		SampleRate: options.SampleRate,
		BlockSize:  options.BlockSize,
		Topology:   options.Topology,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	d := &Device{options: options, engine: engine}
	if err := d.setup(hw); err != nil {
		_ = d.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Info("Device created successfully")
	return d, nil
}

func (d *Device) setup(hw Hardware) error {
	opts := d.options

	if opts.Compression != nil {
		for _, ear := range []audio.Ear{audio.EarLeft, audio.EarRight} {
			cfg := *opts.Compression
			cfg.SampleRate = opts.SampleRate
			comp, err := audio.NewCompressorEffect(cfg)
			if err != nil {
				return fmt.Errorf("create compressor: %w", err)
			}
			if err := d.engine.AddEffect(ear, comp); err != nil {
				return err
			}
		}
	}

	topology := opts.Topology
	if topology == nil {
		topology = audio.DefaultTopology()
	}

	var err error
	if d.graph, err = audio.NewMixGraph(d.engine, topology); err != nil {
		return fmt.Errorf("create mix graph: %w", err)
	}
	if d.tone, err = audio.NewToneGenerator(d.engine, opts.ToneFrequency); err != nil {
		return fmt.Errorf("create tone: %w", err)
	}

	gain, err := control.NewGainControl(hw.Gain, opts.ClampRawGain)
	if err != nil {
		return err
	}
	button, err := control.NewModeButton(hw.Button, opts.ButtonDebounceCycles)
	if err != nil {
		return err
	}

	pacer := opts.Pacer
	if pacer == nil {
		if d.ticker, err = control.NewTickerPacer(opts.CycleInterval); err != nil {
			return err
		}
		pacer = d.ticker
	}

	if d.loop, err = control.NewLoop(control.LoopConfig{
		Gain:            gain,
		Button:          button,
		Indicator:       hw.Indicator,
		MicSelect:       hw.MicSelect,
		Graph:           d.graph,
		Tone:            d.tone,
		Pacer:           pacer,
		GainPollEvery:   opts.GainPollEvery,
		DefaultGain:     opts.DefaultGain,
		ToneOnAmplitude: opts.ToneOnAmplitude,
	}); err != nil {
		return fmt.Errorf("create control loop: %w", err)
	}

	return d.loop.Init()
}

// Run runs the control loop until ctx is done. The audio engine is driven
// separately with Engine().Run.
func (d *Device) Run(ctx context.Context) error {
	err := d.loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Options returns the device configuration.
func (d *Device) Options() *Options { return d.options }

// Engine returns the reference audio engine.
func (d *Device) Engine() *audio.Engine { return d.engine }

// Graph returns the mix graph.
func (d *Device) Graph() *audio.MixGraph { return d.graph }

// Tone returns the tone generator.
func (d *Device) Tone() *audio.ToneGenerator { return d.tone }

// Loop returns the control loop.
func (d *Device) Loop() *control.Loop { return d.loop }

// Status returns the state applied by the last control cycle.
func (d *Device) Status() control.Status { return d.loop.Snapshot() }

// OnStatus registers a callback for every completed control cycle.
func (d *Device) OnStatus(cb func(control.Status)) { d.loop.OnCycle(cb) }

// Close stops the pacer and releases the engine.
func (d *Device) Close() error {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	if d.engine != nil {
		return d.engine.Close()
	}
	return nil
}
