package orchestrator

import (
	"context"
	"time"
)

// Pacer spaces cycles at a fixed period measured from each cycle's start.
// Work that overruns the period is reported, never compensated for.
type Pacer struct {
	period time.Duration
	start  time.Time
	now    func() time.Time
}

// NewPacer creates a pacer for rate cycles per second; a non-positive rate uses DefaultCaptureRate.
func NewPacer(rate float64) *Pacer {
	if !(rate > 0) {
		rate = DefaultCaptureRate
	}
	return &Pacer{
		period: time.Duration(float64(time.Second) / rate),
		now:    time.Now,
	}
}

// Period returns the cycle budget.
func (p *Pacer) Period() time.Duration { return p.period }

// Begin marks the start of a cycle and returns it.
func (p *Pacer) Begin() time.Time {
	p.start = p.now()
	return p.start
}

// Elapsed returns the time since Begin.
func (p *Pacer) Elapsed() time.Duration { return p.now().Sub(p.start) }

// Wait sleeps out the rest of the period. When the work took longer than
// the period it returns at once with the overrun. It returns ctx.Err() if
// ctx is done before the period ends.
func (p *Pacer) Wait(ctx context.Context) (overrun time.Duration, err error) {
	remaining := p.period - p.Elapsed()
	if remaining <= 0 {
		return -remaining, nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, nil
	}
}
