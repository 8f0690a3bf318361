// Package terminal drives the hearmix HAL from a raw-mode keyboard.
//
// Keys:
//
//	0-9    set the gain potentiometer to a tenth of its travel
//	+ / -  nudge the potentiometer by PotStep
//	space  toggle the mode button (terminals report no key release)
//	q      quit
//
// The indicator and mic-select outputs are rendered as a single status line.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/opd-ai/hearmix/hal"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// PotStep is the raw change applied by the + and - keys.
const PotStep = 32

// Panel is a keyboard-backed front panel.
type Panel struct {
	pot       *hal.SimAnalog
	button    *hal.SimDigitalInput
	indicator *panelOutput
	micSelect *hal.SimDigitalOutput

	out      io.Writer
	renderMu sync.Mutex
	quit     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	fd       int
	oldState *term.State
}

// NewPanel creates a panel that renders its status line to out.
func NewPanel(out io.Writer) *Panel {
	p := &Panel{
		pot:       hal.NewSimAnalog(limits.RawGainMax / 2),
		button:    hal.NewSimDigitalInput(false),
		micSelect: hal.NewSimDigitalOutput(),
		out:       out,
		quit:      make(chan struct{}),
		fd:        -1,
	}
	p.indicator = &panelOutput{panel: p}
	return p
}

// Gain returns the potentiometer input.
func (p *Panel) Gain() hal.AnalogInput { return p.pot }

// Button returns the mode button input.
func (p *Panel) Button() hal.DigitalInput { return p.button }

// Indicator returns the status LED output.
func (p *Panel) Indicator() hal.DigitalOutput { return p.indicator }

// MicSelect returns the microphone mode select output.
func (p *Panel) MicSelect() hal.DigitalOutput { return p.micSelect }

// Quit is closed when the user presses q or Ctrl-C.
func (p *Panel) Quit() <-chan struct{} { return p.quit }

// HandleKey applies a single key press.
func (p *Panel) HandleKey(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.pot.Set(uint16(int(b-'0') * limits.RawGainMax / 9))
	case b == '+' || b == '=':
		p.nudge(PotStep)
	case b == '-' || b == '_':
		p.nudge(-PotStep)
	case b == ' ':
		p.button.Set(!p.button.Read())
	case b == 'q' || b == 0x03:
		p.once.Do(func() { close(p.quit) })
		return
	default:
		return
	}
	p.render()
}

func (p *Panel) nudge(delta int) {
	v := int(p.pot.ReadRaw()) + delta
	if v < limits.RawGainMin {
		v = limits.RawGainMin
	}
	if v > limits.RawGainMax {
		v = limits.RawGainMax
	}
	p.pot.Set(uint16(v))
}

// Start puts stdin in raw mode and begins reading keys.
func (p *Panel) Start() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin: %w", hal.ErrNotTerminal)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}

	p.mu.Lock()
	p.fd = fd
	p.oldState = oldState
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Panel.Start",
		"fd":       fd,
	}).Info("Terminal panel started")

	go p.readKeys(os.Stdin)
	p.render()
	return nil
}

func (p *Panel) readKeys(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.HandleKey(buf[0])
		}
		if err != nil {
			return
		}
		select {
		case <-p.quit:
			return
		default:
		}
	}
}

// Stop restores the terminal.
func (p *Panel) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oldState != nil {
		_ = term.Restore(p.fd, p.oldState)
		p.oldState = nil
	}
	fmt.Fprint(p.out, "\r\n")
}

func (p *Panel) render() {
	led := "off"
	if p.indicator.High() {
		led = "ON "
	}
	button := "released"
	if p.button.Read() {
		button = "pressed "
	}
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	fmt.Fprintf(p.out, "\rgain pot %4d  button %s  led %s", p.pot.ReadRaw(), button, led)
}

// panelOutput re-renders the status line when the indicator changes.
type panelOutput struct {
	panel *Panel
	mu    sync.Mutex
	high  bool
}

func (o *panelOutput) Set(high bool) {
	o.mu.Lock()
	changed := o.high != high
	o.high = high
	o.mu.Unlock()
	if changed {
		o.panel.render()
	}
}

func (o *panelOutput) High() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.high
}
