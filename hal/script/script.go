// Package script drives the hearmix HAL from a Lua scenario.
//
// A scenario defines a global function sample(cycle) that returns the raw gain
// sample and the button state for that control cycle, or nil to end the run:
//
//	function sample(cycle)
//	  if cycle >= 200 then return nil end
//	  local pressed = (cycle % 40) < 20
//	  return cycle * 5, pressed
//	end
//
// sample is called once per control cycle, with cycle counting from 0. The
// first read of a cycle fetches the sample. The button read closes the cycle,
// since the control loop samples the button every cycle but may skip the
// potentiometer (GainPollEvery). Non-numeric or NaN gain samples read as 0.
package script

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// SampleFunc is the name of the Lua function a scenario must define.
const SampleFunc = "sample"

var (
	// ErrNoSampleFunc indicates the scenario does not define sample(cycle).
	ErrNoSampleFunc = errors.New("scenario does not define sample(cycle)")

	// ErrScenarioFailed indicates sample(cycle) raised an error.
	ErrScenarioFailed = errors.New("scenario failed")
)

// Inputs is a scripted gain potentiometer and mode button.
type Inputs struct {
	mu      sync.Mutex
	state   *lua.LState
	fn      lua.LValue
	cycle   int
	raw     uint16
	pressed bool
	pending bool
	done    chan struct{}
	ended   bool
	err     error
}

// Load compiles a scenario from source.
func Load(src string) (*Inputs, error) {
	L := lua.NewState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	fn := L.GetGlobal(SampleFunc)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, ErrNoSampleFunc
	}

	logrus.WithFields(logrus.Fields{
		"function": "script.Load",
		"bytes":    len(src),
	}).Info("Scenario loaded")

	return &Inputs{
		state: L,
		fn:    fn,
		done:  make(chan struct{}),
	}, nil
}

// LoadFile compiles a scenario from a file.
func LoadFile(path string) (*Inputs, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Load(string(src))
}

// ReadRaw returns the raw gain sample of the current cycle.
func (in *Inputs) ReadRaw() uint16 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.pending {
		in.advance()
	}
	return in.raw
}

// Read returns the button state of the current cycle and ends the cycle.
func (in *Inputs) Read() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.pending {
		in.advance()
	}
	in.pending = false
	return in.pressed
}

func (in *Inputs) advance() {
	if in.ended {
		return
	}

	err := in.state.CallByParam(lua.P{
		Fn:      in.fn,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(in.cycle))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Inputs.advance",
			"cycle":    in.cycle,
			"error":    err.Error(),
		}).Error("Scenario sample failed")
		in.finish(fmt.Errorf("%w at cycle %d: %v", ErrScenarioFailed, in.cycle, err))
		return
	}

	rawValue := in.state.Get(-2)
	pressedValue := in.state.Get(-1)
	in.state.Pop(2)

	if rawValue == lua.LNil {
		logrus.WithFields(logrus.Fields{
			"function": "Inputs.advance",
			"cycle":    in.cycle,
		}).Info("Scenario ended")
		in.finish(nil)
		return
	}

	raw := float64(lua.LVAsNumber(rawValue))
	switch {
	case math.IsNaN(raw), raw < 0:
		raw = 0
	case raw > 65535:
		raw = 65535
	}
	in.raw = uint16(raw)
	in.pressed = lua.LVAsBool(pressedValue)

	if in.raw > limits.RawGainMax {
		logrus.WithFields(logrus.Fields{
			"function": "Inputs.advance",
			"cycle":    in.cycle,
			"raw":      in.raw,
		}).Warn("Scenario produced out-of-range gain sample")
	}

	in.pending = true
	in.cycle++
}

func (in *Inputs) finish(err error) {
	in.ended = true
	in.err = err
	close(in.done)
}

// Done is closed when the scenario returns nil or fails.
func (in *Inputs) Done() <-chan struct{} { return in.done }

// Err returns the scenario failure, if any.
func (in *Inputs) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// Cycle returns the number of cycles sampled so far.
func (in *Inputs) Cycle() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.cycle
}

// Close releases the Lua state.
func (in *Inputs) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != nil {
		in.state.Close()
		in.state = nil
	}
	if !in.ended {
		in.finish(nil)
	}
	return nil
}
