package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/opd-ai/hearmix/limits"
	"github.com/stretchr/testify/assert"
)

func TestPanelDigitKeysSetPot(t *testing.T) {
	p := NewPanel(&bytes.Buffer{})

	p.HandleKey('0')
	assert.Equal(t, uint16(0), p.Gain().ReadRaw())

	p.HandleKey('9')
	assert.Equal(t, uint16(limits.RawGainMax), p.Gain().ReadRaw())
}

func TestPanelNudgeClamps(t *testing.T) {
	p := NewPanel(&bytes.Buffer{})

	p.HandleKey('9')
	p.HandleKey('+')
	assert.Equal(t, uint16(limits.RawGainMax), p.Gain().ReadRaw())

	p.HandleKey('-')
	assert.Equal(t, uint16(limits.RawGainMax-PotStep), p.Gain().ReadRaw())

	p.HandleKey('0')
	p.HandleKey('-')
	assert.Equal(t, uint16(0), p.Gain().ReadRaw())
}

func TestPanelSpaceTogglesButton(t *testing.T) {
	p := NewPanel(&bytes.Buffer{})

	assert.False(t, p.Button().Read())
	p.HandleKey(' ')
	assert.True(t, p.Button().Read())
	p.HandleKey(' ')
	assert.False(t, p.Button().Read())
}

func TestPanelQuit(t *testing.T) {
	p := NewPanel(&bytes.Buffer{})

	p.HandleKey('q')
	p.HandleKey(0x03)

	select {
	case <-p.Quit():
	default:
		t.Fatal("Quit channel not closed after q")
	}
}

func TestPanelIndicatorRenders(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPanel(out)

	p.Indicator().Set(true)
	assert.True(t, strings.Contains(out.String(), "led ON"))
}

func TestPanelReadKeys(t *testing.T) {
	p := NewPanel(&bytes.Buffer{})

	p.readKeys(strings.NewReader("5 "))

	assert.Equal(t, uint16(5*limits.RawGainMax/9), p.Gain().ReadRaw())
	assert.True(t, p.Button().Read())
}
