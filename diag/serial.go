package diag

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/opd-ai/hearmix/control"
	"github.com/opd-ai/hearmix/limits"
	"github.com/sirupsen/logrus"
)

// SerialHeader is written before the first report.
const SerialHeader = "# cycle,raw_gain,gain,mode,indicator,tone_amplitude\n"

// LineBudget is the worst-case length of one report line in bytes.
const LineBudget = 64

// bitsPerByte is one start bit, eight data bits and one stop bit.
const bitsPerByte = 10

// SerialReporter writes one line per report to a byte stream with limited
// bandwidth. Reports are thinned to fit the baud rate; a mode change is
// always reported.
type SerialReporter struct {
	mu       sync.Mutex
	w        io.Writer
	every    uint64
	started  bool
	lastMode control.Mode
	reports  uint64
	dropped  uint64
}

// NewSerialReporter sizes the report rate so that lines produced at one per
// cycleInterval fit within baud.
func NewSerialReporter(w io.Writer, baud int, cycleInterval time.Duration) (*SerialReporter, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	if baud <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBaud, baud)
	}
	if err := limits.ValidateInterval(cycleInterval); err != nil {
		return nil, err
	}

	linesPerSecond := float64(baud) / bitsPerByte / LineBudget
	cyclesPerSecond := float64(time.Second) / float64(cycleInterval)
	every := uint64(math.Ceil(cyclesPerSecond / linesPerSecond))
	if every < 1 {
		every = 1
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewSerialReporter",
		"baud":         baud,
		"cycle_ms":     cycleInterval.Milliseconds(),
		"report_every": every,
	}).Info("Serial diagnostics enabled")

	return &SerialReporter{w: w, every: every}, nil
}

// Every returns the report period in cycles.
func (r *SerialReporter) Every() uint64 { return r.every }

// Report writes s if it is due or if the mode changed.
func (r *SerialReporter) Report(s control.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := s.Cycle%r.every == 0 || !r.started || s.Mode != r.lastMode
	r.lastMode = s.Mode
	if !due {
		return nil
	}

	if !r.started {
		if _, err := io.WriteString(r.w, SerialHeader); err != nil {
			r.dropped++
			return fmt.Errorf("write header: %w", err)
		}
		r.started = true
	}

	if _, err := io.WriteString(r.w, FormatLine(s)); err != nil {
		r.dropped++
		return fmt.Errorf("write report: %w", err)
	}
	r.reports++
	return nil
}

// Observe is Report for use as a control.Loop cycle callback. Write errors
// are logged and the report is dropped.
func (r *SerialReporter) Observe(s control.Status) {
	if err := r.Report(s); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SerialReporter.Observe",
			"cycle":    s.Cycle,
			"error":    err.Error(),
		}).Warn("Dropped serial report")
	}
}

// Counts returns the number of written and dropped reports.
func (r *SerialReporter) Counts() (reports, dropped uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports, r.dropped
}

// FormatLine renders s as one report line.
func FormatLine(s control.Status) string {
	indicator := 0
	if s.Indicator {
		indicator = 1
	}
	return fmt.Sprintf("%d,%d,%.2f,%s,%d,%.3f\n",
		s.Cycle, s.RawGain, s.Gain, s.Mode, indicator, s.ToneAmplitude)
}
