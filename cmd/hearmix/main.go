package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/opd-ai/hearmix"
	"github.com/opd-ai/hearmix/audio"
	"github.com/opd-ai/hearmix/audio/speaker"
	"github.com/opd-ai/hearmix/diag"
	"github.com/opd-ai/hearmix/hal"
	"github.com/opd-ai/hearmix/hal/script"
	"github.com/opd-ai/hearmix/hal/terminal"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
)

// Input modes.
const (
	inputTerminal = "terminal"
	inputScript   = "script"
	inputFixed    = "fixed"
)

// Microphone source modes.
const (
	micsSine    = "sine"
	micsNoise   = "noise"
	micsSilence = "silence"
	micsOpus    = "opus"
)

// outputBufferBytes holds about 90ms of stereo int16 at 44.1kHz.
const outputBufferBytes = 16384

// CLI configuration
type CLIConfig struct {
	input      string
	scriptPath string
	rawGain    uint
	pressed    bool
	mics       string
	opusFiles  string
	listen     string
	serial     bool
	noAudio    bool
	compress   bool
	debounce   int
	pollEvery  int
	duration   time.Duration
	logLevel   string
	logFile    string
	help       bool
}

// parseCLIFlags parses args into a configuration.
func parseCLIFlags(args []string) (*CLIConfig, *flag.FlagSet, error) {
	config := &CLIConfig{}
	fs := flag.NewFlagSet("hearmix", flag.ContinueOnError)

	// Inputs
	fs.StringVar(&config.input, "input", inputTerminal, "Input source: terminal, script or fixed")
	fs.StringVar(&config.scriptPath, "script", "", "Lua scenario file for -input script")
	fs.UintVar(&config.rawGain, "raw-gain", limits.RawGainMax/2, "Potentiometer sample for -input fixed (0-1023)")
	fs.BoolVar(&config.pressed, "pressed", false, "Button state for -input fixed")

	// Audio
	fs.StringVar(&config.mics, "mics", micsSine, "Microphone sources: sine, noise, silence or opus")
	fs.StringVar(&config.opusFiles, "opus", "", "Comma-separated length-prefixed Opus captures for -mics opus")
	fs.BoolVar(&config.noAudio, "no-audio", false, "Do not open the sound card")
	fs.BoolVar(&config.compress, "compress", false, "Enable the output compressor")

	// Control
	fs.IntVar(&config.debounce, "debounce", 0, "Button debounce window in cycles (0 = off)")
	fs.IntVar(&config.pollEvery, "poll-every", 1, "Read the potentiometer every N cycles")
	fs.DurationVar(&config.duration, "duration", 0, "Stop after this long (0 = run until interrupted)")

	// Diagnostics
	fs.StringVar(&config.listen, "listen", "", "Serve websocket diagnostics on this address, e.g. 127.0.0.1:8080")
	fs.BoolVar(&config.serial, "serial", false, "Write serial-style report lines to stderr")

	// Logging
	fs.StringVar(&config.logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&config.logFile, "log-file", "", "Log file path (default: stderr)")

	// Help
	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return config, fs, nil
}

// printUsage prints the usage information.
func printUsage(fs *flag.FlagSet) {
	fmt.Println("hearmix host simulator")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("Runs the hearing-assistance control loop and audio engine on this machine.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  # Keyboard control with synthetic microphones\n")
	fmt.Printf("  %s\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Scripted scenario, no sound card, live diagnostics\n")
	fmt.Printf("  %s -input script -script scenario.lua -no-audio -listen 127.0.0.1:8080\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Replay a capture through the compressor\n")
	fmt.Printf("  %s -mics opus -opus left.opus,right.opus -compress\n", os.Args[0])
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	switch config.input {
	case inputTerminal, inputFixed:
	case inputScript:
		if config.scriptPath == "" {
			return fmt.Errorf("-input script requires -script")
		}
	default:
		return fmt.Errorf("unknown input %q: must be terminal, script or fixed", config.input)
	}

	switch config.mics {
	case micsSine, micsNoise, micsSilence:
	case micsOpus:
		if len(splitList(config.opusFiles)) == 0 {
			return fmt.Errorf("-mics opus requires -opus")
		}
		if n := len(splitList(config.opusFiles)); n > limits.NumMicChannels {
			return fmt.Errorf("at most %d opus files, got %d", limits.NumMicChannels, n)
		}
	default:
		return fmt.Errorf("unknown mics %q: must be sine, noise, silence or opus", config.mics)
	}

	if config.rawGain > 0xFFFF {
		return fmt.Errorf("raw gain %d exceeds 16 bits", config.rawGain)
	}
	if config.debounce < 0 {
		return fmt.Errorf("debounce cannot be negative")
	}
	if config.pollEvery < 1 {
		return fmt.Errorf("poll-every must be at least 1")
	}
	if config.duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if _, err := parseLogLevel(config.logLevel); err != nil {
		return err
	}
	return nil
}

// parseLogLevel accepts the level names used by -log-level.
func parseLogLevel(level string) (logrus.Level, error) {
	if strings.EqualFold(level, "WARN") {
		return logrus.WarnLevel, nil
	}
	return logrus.ParseLevel(strings.ToLower(level))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// createOptions converts the CLI configuration to device options.
func createOptions(config *CLIConfig) *hearmix.Options {
	opts := hearmix.NewOptions()
	opts.ButtonDebounceCycles = config.debounce
	opts.GainPollEvery = config.pollEvery
	if config.compress {
		cfg := audio.DefaultCompressorConfig(opts.SampleRate)
		opts.Compression = &cfg
	}
	return opts
}

// createSources builds the four microphone sources.
func createSources(config *CLIConfig, sampleRate int) ([]audio.MicSource, error) {
	sources := make([]audio.MicSource, limits.NumMicChannels)

	switch config.mics {
	case micsSine:
		// Distinct pitches make the routing audible: low on the left, high on the right.
		freqs := []float64{220, 330, 277, 415}
		for ch := range sources {
			sources[ch] = audio.NewSineSource(sampleRate, freqs[ch], 0.2)
		}
	case micsNoise:
		for ch := range sources {
			sources[ch] = audio.NewNoiseSource(int64(ch+1), 0.05)
		}
	case micsSilence:
		for ch := range sources {
			sources[ch] = audio.SilenceSource{}
		}
	case micsOpus:
		files := splitList(config.opusFiles)
		decoded := make([]audio.MicSource, len(files))
		for i, path := range files {
			src, err := loadOpusSource(path, sampleRate)
			if err != nil {
				return nil, err
			}
			decoded[i] = src
		}
		for ch := range sources {
			sources[ch] = decoded[ch%len(decoded)]
		}
	default:
		return nil, fmt.Errorf("unknown mics %q", config.mics)
	}
	return sources, nil
}

func loadOpusSource(path string, sampleRate int) (*audio.OpusSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	packets, err := audio.ReadOpusPackets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src, err := audio.NewOpusSource(packets, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// inputs is the hardware chosen by -input plus its lifecycle hooks.
type inputs struct {
	hw    hearmix.Hardware
	done  <-chan struct{}
	err   func() error
	close func() error
}

// player is the host audio output.
type player interface {
	Start()
	Close() error
}

// openPlayer opens the sound card and plays src.
var openPlayer = func(sampleRate int, src io.Reader) (player, error) {
	spk, err := speaker.New(sampleRate, src)
	if err != nil {
		return nil, err
	}
	return spk, nil
}

// createInputs builds the front panel selected by -input.
func createInputs(config *CLIConfig) (*inputs, error) {
	switch config.input {
	case inputTerminal:
		panel := terminal.NewPanel(os.Stdout)
		if err := panel.Start(); err != nil {
			return nil, err
		}
		return &inputs{
			hw: hearmix.Hardware{
				Gain:      panel.Gain(),
				Button:    panel.Button(),
				Indicator: panel.Indicator(),
				MicSelect: panel.MicSelect(),
			},
			done:  panel.Quit(),
			close: func() error { panel.Stop(); return nil },
		}, nil

	case inputScript:
		scenario, err := script.LoadFile(config.scriptPath)
		if err != nil {
			return nil, err
		}
		return &inputs{
			hw: hearmix.Hardware{
				Gain:      scenario,
				Button:    scenario,
				Indicator: hal.NewSimDigitalOutput(),
				MicSelect: hal.NewSimDigitalOutput(),
			},
			done:  scenario.Done(),
			err:   scenario.Err,
			close: scenario.Close,
		}, nil

	case inputFixed:
		return &inputs{
			hw: hearmix.Hardware{
				Gain:      hal.NewSimAnalog(uint16(config.rawGain)),
				Button:    hal.NewSimDigitalInput(config.pressed),
				Indicator: hal.NewSimDigitalOutput(),
				MicSelect: hal.NewSimDigitalOutput(),
			},
			close: func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown input %q", config.input)
}

// setupSignalHandling sets up graceful shutdown on interrupt signals.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Info("Received signal, shutting down")
		cancel()
	}()
}

// configureLogging applies -log-level and -log-file.
func configureLogging(config *CLIConfig) (io.Closer, error) {
	level, err := parseLogLevel(config.logLevel)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)

	if config.logFile == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(config.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)
	return f, nil
}

// run wires the simulator together and blocks until shutdown.
func run(ctx context.Context, config *CLIConfig) error {
	in, err := createInputs(config)
	if err != nil {
		return fmt.Errorf("create inputs: %w", err)
	}
	defer in.close()

	device, err := hearmix.New(createOptions(config), in.hw)
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	defer device.Close()

	sources, err := createSources(config, device.Options().SampleRate)
	if err != nil {
		return err
	}
	for ch, src := range sources {
		if err := device.Engine().SetSource(ch, src); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if config.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, config.duration)
		defer cancel()
	}
	if in.done != nil {
		go func() {
			select {
			case <-in.done:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	// Goroutines below exit on ctx, so cancel before waiting on them.
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if config.serial {
		reporter, err := diag.NewSerialReporter(os.Stderr, limits.DiagnosticBaud, device.Options().CycleInterval)
		if err != nil {
			return err
		}
		device.OnStatus(reporter.Observe)
	}

	if config.listen != "" {
		hub, err := diag.NewHub()
		if err != nil {
			return err
		}
		device.OnStatus(hub.Broadcast)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.Serve(ctx, config.listen); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "run",
					"error":    err.Error(),
				}).Error("Diagnostic server failed")
				cancel()
			}
		}()
	}

	if !config.noAudio {
		out := audio.NewOutputBuffer(outputBufferBytes)
		spk, err := openPlayer(device.Options().SampleRate, out)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer spk.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer out.Close()
			err := device.Engine().Run(ctx, out)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logrus.WithFields(logrus.Fields{
					"function": "run",
					"error":    err.Error(),
				}).Error("Audio engine failed")
				cancel()
			}
		}()
		// Unblock the engine if it is waiting on a full buffer at shutdown.
		go func() {
			<-ctx.Done()
			out.Close()
		}()
		spk.Start()
	}

	err = device.Run(ctx)
	cancel()

	stats := device.Engine().Stats()
	logrus.WithFields(logrus.Fields{
		"function":        "run",
		"cycles":          device.Status().Cycle,
		"blocks":          stats.Blocks,
		"clipped_samples": stats.ClippedSamples,
	}).Info("Simulator stopped")

	if err == nil && in.err != nil {
		err = in.err()
	}
	return err
}

// main is the entry point for the simulator.
func main() {
	cliConfig, fs, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if cliConfig.help {
		printUsage(fs)
		os.Exit(0)
	}

	if err := validateCLIConfig(cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	logCloser, err := configureLogging(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := run(ctx, cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "hearmix: %v\n", err)
		logCloser.Close()
		os.Exit(1)
	}
}
