package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/hearmix/control"
	"github.com/opd-ai/hearmix/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSerialReporterValidation(t *testing.T) {
	_, err := NewSerialReporter(nil, 9600, limits.CycleInterval)
	assert.ErrorIs(t, err, ErrNilWriter)

	_, err = NewSerialReporter(&bytes.Buffer{}, 0, limits.CycleInterval)
	assert.ErrorIs(t, err, ErrInvalidBaud)

	_, err = NewSerialReporter(&bytes.Buffer{}, 9600, 0)
	assert.ErrorIs(t, err, limits.ErrInvalidInterval)
}

func TestSerialReporterRate(t *testing.T) {
	tests := []struct {
		baud     int
		interval time.Duration
		want     uint64
	}{
		{limits.DiagnosticBaud, limits.CycleInterval, 3},
		{115200, limits.CycleInterval, 1},
		{9600, time.Second, 1},
		{1200, 10 * time.Millisecond, 54},
	}

	for _, tt := range tests {
		r, err := NewSerialReporter(&bytes.Buffer{}, tt.baud, tt.interval)
		require.NoError(t, err)
		assert.Equal(t, tt.want, r.Every(), "baud %d interval %v", tt.baud, tt.interval)
	}
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(control.Status{
		Cycle:         42,
		RawGain:       511,
		Gain:          0.49,
		Mode:          control.ModeToneActive,
		Indicator:     true,
		ToneAmplitude: 0.1,
	})
	assert.Equal(t, "42,511,0.49,tone_active,1,0.100\n", line)
	assert.LessOrEqual(t, len(line), LineBudget)
}

func TestSerialReporterThinsReports(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewSerialReporter(&buf, limits.DiagnosticBaud, limits.CycleInterval)
	require.NoError(t, err)

	for cycle := uint64(1); cycle <= 9; cycle++ {
		require.NoError(t, r.Report(control.Status{Cycle: cycle, Mode: control.ModeQuiet}))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, strings.TrimSpace(SerialHeader), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,"), "first report is always written")
	assert.True(t, strings.HasPrefix(lines[2], "3,"))
	assert.True(t, strings.HasPrefix(lines[3], "6,"))
	assert.True(t, strings.HasPrefix(lines[4], "9,"))

	reports, dropped := r.Counts()
	assert.Equal(t, uint64(4), reports)
	assert.Equal(t, uint64(0), dropped)
}

func TestSerialReporterReportsModeChanges(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewSerialReporter(&buf, limits.DiagnosticBaud, limits.CycleInterval)
	require.NoError(t, err)

	require.NoError(t, r.Report(control.Status{Cycle: 1, Mode: control.ModeQuiet}))
	require.NoError(t, r.Report(control.Status{Cycle: 2, Mode: control.ModeToneActive, Indicator: true}))
	require.NoError(t, r.Report(control.Status{Cycle: 4, Mode: control.ModeToneActive, Indicator: true}))
	require.NoError(t, r.Report(control.Status{Cycle: 5, Mode: control.ModeQuiet}))

	out := buf.String()
	assert.Contains(t, out, "2,0,0.00,tone_active,1,")
	assert.NotContains(t, out, "\n4,")
	assert.Contains(t, out, "5,0,0.00,quiet,0,")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("port gone") }

func TestSerialReporterWriteFailure(t *testing.T) {
	r, err := NewSerialReporter(failingWriter{}, 9600, limits.CycleInterval)
	require.NoError(t, err)

	assert.Error(t, r.Report(control.Status{Cycle: 3}))
	assert.NotPanics(t, func() { r.Observe(control.Status{Cycle: 6}) })

	reports, dropped := r.Counts()
	assert.Equal(t, uint64(0), reports)
	assert.Equal(t, uint64(2), dropped)
}
