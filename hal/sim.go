package hal

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SimAnalog is an in-memory AnalogInput.
type SimAnalog struct {
	value atomic.Uint32
	reads atomic.Uint64
	dir   atomic.Uint32
}

// NewSimAnalog creates a simulated ADC channel holding raw.
func NewSimAnalog(raw uint16) *SimAnalog {
	a := &SimAnalog{}
	a.value.Store(uint32(raw))
	return a
}

// ReadRaw returns the current value.
func (a *SimAnalog) ReadRaw() uint16 {
	a.reads.Add(1)
	return uint16(a.value.Load())
}

// Set changes the value seen by the next read.
func (a *SimAnalog) Set(raw uint16) { a.value.Store(uint32(raw)) }

// Reads returns how many times the channel was sampled.
func (a *SimAnalog) Reads() uint64 { return a.reads.Load() }

// Configure accepts only DirectionInput.
func (a *SimAnalog) Configure(dir Direction) error {
	if dir != DirectionInput {
		return fmt.Errorf("%w: analog channel cannot be %s", ErrDirectionMismatch, dir)
	}
	a.dir.Store(uint32(dir))
	return nil
}

// Direction returns the configured direction.
func (a *SimAnalog) Direction() Direction { return Direction(a.dir.Load()) }

// SimDigitalInput is an in-memory DigitalInput.
type SimDigitalInput struct {
	high atomic.Bool
	dir  atomic.Uint32
}

// NewSimDigitalInput creates a simulated input line.
func NewSimDigitalInput(high bool) *SimDigitalInput {
	in := &SimDigitalInput{}
	in.high.Store(high)
	return in
}

// Read returns the current level.
func (in *SimDigitalInput) Read() bool { return in.high.Load() }

// Set changes the level seen by the next read.
func (in *SimDigitalInput) Set(high bool) { in.high.Store(high) }

// Configure accepts only DirectionInput.
func (in *SimDigitalInput) Configure(dir Direction) error {
	if dir != DirectionInput {
		return fmt.Errorf("%w: input line cannot be %s", ErrDirectionMismatch, dir)
	}
	in.dir.Store(uint32(dir))
	return nil
}

// Direction returns the configured direction.
func (in *SimDigitalInput) Direction() Direction { return Direction(in.dir.Load()) }

// SimDigitalOutput is an in-memory DigitalOutput that records every write.
type SimDigitalOutput struct {
	mu      sync.Mutex
	high    bool
	history []bool
	dir     Direction
}

// NewSimDigitalOutput creates a simulated output line, initially low.
func NewSimDigitalOutput() *SimDigitalOutput {
	return &SimDigitalOutput{}
}

// Set drives the line and appends the level to the history.
func (out *SimDigitalOutput) Set(high bool) {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.high = high
	out.history = append(out.history, high)
}

// High returns the current level.
func (out *SimDigitalOutput) High() bool {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.high
}

// History returns a copy of all levels written so far.
func (out *SimDigitalOutput) History() []bool {
	out.mu.Lock()
	defer out.mu.Unlock()
	h := make([]bool, len(out.history))
	copy(h, out.history)
	return h
}

// Configure accepts only DirectionOutput.
func (out *SimDigitalOutput) Configure(dir Direction) error {
	if dir != DirectionOutput {
		return fmt.Errorf("%w: output line cannot be %s", ErrDirectionMismatch, dir)
	}
	out.mu.Lock()
	out.dir = dir
	out.mu.Unlock()
	return nil
}

// Direction returns the configured direction.
func (out *SimDigitalOutput) Direction() Direction {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.dir
}
