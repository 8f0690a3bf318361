package limits

import (
	"errors"
	"math"
	"testing"
	"time"
)

// TestControlRateMatchesCycleInterval verifies the declared control rate is
// derived from the cycle interval.
func TestControlRateMatchesCycleInterval(t *testing.T) {
	if ControlRateHz != 40 {
		t.Errorf("ControlRateHz = %d, want 40", ControlRateHz)
	}
	if CycleInterval != SettlingDelay {
		t.Errorf("CycleInterval = %v, want %v", CycleInterval, SettlingDelay)
	}
}

func TestValidateGain(t *testing.T) {
	tests := []struct {
		name    string
		gain    float64
		wantErr bool
	}{
		{"zero", 0.0, false},
		{"default", DefaultGain, false},
		{"unity", 1.0, false},
		{"negative", -0.01, true},
		{"above unity", 1.01, true},
		{"nan", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGain(tt.gain)
			if tt.wantErr {
				if !errors.Is(err, ErrGainOutOfRange) {
					t.Errorf("ValidateGain(%f) error = %v, want ErrGainOutOfRange", tt.gain, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateGain(%f) unexpected error: %v", tt.gain, err)
			}
		})
	}
}

func TestValidateRawGain(t *testing.T) {
	if err := ValidateRawGain(RawGainMax); err != nil {
		t.Errorf("ValidateRawGain(%d) unexpected error: %v", RawGainMax, err)
	}
	if err := ValidateRawGain(RawGainMax + 1); !errors.Is(err, ErrRawGainOutOfRange) {
		t.Errorf("ValidateRawGain(%d) error = %v, want ErrRawGainOutOfRange", RawGainMax+1, err)
	}
}

func TestClampRawGain(t *testing.T) {
	tests := []struct {
		raw  uint16
		want uint16
	}{
		{0, 0},
		{511, 511},
		{RawGainMax, RawGainMax},
		{RawGainMax + 1, RawGainMax},
		{math.MaxUint16, RawGainMax},
	}

	for _, tt := range tests {
		if got := ClampRawGain(tt.raw); got != tt.want {
			t.Errorf("ClampRawGain(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestValidateInterval(t *testing.T) {
	if err := ValidateInterval(time.Millisecond); err != nil {
		t.Errorf("ValidateInterval(1ms) unexpected error: %v", err)
	}
	for _, d := range []time.Duration{0, -time.Second} {
		if err := ValidateInterval(d); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("ValidateInterval(%v) error = %v, want ErrInvalidInterval", d, err)
		}
	}
}
