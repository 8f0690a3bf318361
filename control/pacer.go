package control

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/hearmix/limits"
)

// Pacer sets the control rate. Wait blocks until the next cycle boundary.
type Pacer interface {
	Wait(ctx context.Context) error
	Interval() time.Duration
}

// TickerPacer paces cycles with a time.Ticker.
type TickerPacer struct {
	ticker   *time.Ticker
	interval time.Duration
}

// NewTickerPacer starts a ticker with the given period.
func NewTickerPacer(interval time.Duration) (*TickerPacer, error) {
	if err := limits.ValidateInterval(interval); err != nil {
		return nil, err
	}
	return &TickerPacer{
		ticker:   time.NewTicker(interval),
		interval: interval,
	}, nil
}

// Wait blocks until the next tick or until ctx is done.
func (p *TickerPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

// Interval returns the ticker period.
func (p *TickerPacer) Interval() time.Duration { return p.interval }

// Stop releases the ticker.
func (p *TickerPacer) Stop() { p.ticker.Stop() }

// ManualPacer is a Pacer for tests. Wait returns immediately and advances a
// simulated clock by one interval.
type ManualPacer struct {
	mu       sync.Mutex
	interval time.Duration
	now      time.Time
	waits    int
	onWait   func(n int)
}

// NewManualPacer creates a manual pacer starting at a fixed epoch.
func NewManualPacer(interval time.Duration) *ManualPacer {
	return &ManualPacer{
		interval: interval,
		now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// OnWait registers a hook run inside every Wait, before it returns. n is the
// 1-based wait count.
func (p *ManualPacer) OnWait(fn func(n int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onWait = fn
}

// Wait advances the simulated clock. It fails if ctx is already done.
func (p *ManualPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.waits++
	p.now = p.now.Add(p.interval)
	n, fn := p.waits, p.onWait
	p.mu.Unlock()

	if fn != nil {
		fn(n)
	}
	return ctx.Err()
}

// Interval returns the simulated period.
func (p *ManualPacer) Interval() time.Duration { return p.interval }

// Waits returns the number of completed waits.
func (p *ManualPacer) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// Now returns the simulated time.
func (p *ManualPacer) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}
