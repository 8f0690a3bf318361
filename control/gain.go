package control

import (
	"github.com/opd-ai/hearmix/hal"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
)

// MapRawGain converts a potentiometer sample to a tap gain.
//
// The sample is scaled to an integer percentage with truncation and then
// divided by 100, giving steps of 0.01 from 0.00 at raw 0 to 1.00 at raw 1023.
func MapRawGain(raw uint16) float64 {
	percent := int(raw) * limits.GainPercentSteps / limits.RawGainMax
	return float64(percent) / limits.GainPercentSteps
}

// GainControl reads the gain potentiometer.
type GainControl struct {
	in    hal.AnalogInput
	clamp bool
	raw   uint16
}

// NewGainControl wraps an analog input. With clamp set, samples above
// limits.RawGainMax are pinned to it before mapping.
func NewGainControl(in hal.AnalogInput, clamp bool) (*GainControl, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	return &GainControl{in: in, clamp: clamp}, nil
}

// Configure sets the input pin direction.
func (g *GainControl) Configure() error {
	return hal.Configure(g.in, hal.DirectionInput)
}

// Sample reads the raw ADC value and records it.
func (g *GainControl) Sample() uint16 {
	raw := g.in.ReadRaw()
	if err := limits.ValidateRawGain(raw); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "GainControl.Sample",
			"raw_gain": raw,
			"clamped":  g.clamp,
			"error":    err.Error(),
		}).Warn("Gain sample outside ADC range")
		if g.clamp {
			raw = limits.ClampRawGain(raw)
		}
	}
	g.raw = raw
	return raw
}

// ReadGain samples the input and maps it with MapRawGain.
func (g *GainControl) ReadGain() float64 {
	return MapRawGain(g.Sample())
}

// RawGain returns the last sample.
func (g *GainControl) RawGain() uint16 { return g.raw }
