package hysteresis

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Actuator asserts a mode on the target application.
// Calls are fire-and-forget; an error only means the request was rejected locally.
type Actuator interface {
	AssertMode(Mode) error
}

// Config holds controller tuning.
type Config struct {
	Threshold   float64       // distance separating "static" from "moving"
	LongWindow  int           // buffer capacity, averaged to enter Low
	ShortWindow int           // trailing samples averaged to leave Low
	GracePeriod time.Duration // no re-entry into Low this long after leaving it
}

// DefaultConfig returns the tuning used for an average-hash distance.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		LongWindow:  DefaultLongWindow,
		ShortWindow: DefaultShortWindow,
		GracePeriod: DefaultGracePeriod,
	}
}

// Validate checks the config for values the controller cannot work with.
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		return fmt.Errorf("threshold must be a non-negative number, got %v", c.Threshold)
	}
	if c.LongWindow < 1 {
		return fmt.Errorf("long window must be at least 1, got %d", c.LongWindow)
	}
	if c.ShortWindow < 1 {
		return fmt.Errorf("short window must be at least 1, got %d", c.ShortWindow)
	}
	if c.ShortWindow > c.LongWindow {
		return fmt.Errorf("short window (%d) cannot exceed long window (%d)", c.ShortWindow, c.LongWindow)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace period cannot be negative, got %v", c.GracePeriod)
	}
	return nil
}

// Controller is the hysteresis state machine. It is owned by a single
// goroutine; no method is safe for concurrent use.
type Controller struct {
	cfg        Config
	act        Actuator
	log        *slog.Logger
	mode       Mode
	graceUntil time.Time
	buf        *Buffer
}

// NewController creates a controller in High mode with an empty history.
func NewController(cfg Config, act Actuator) *Controller {
	return &Controller{
		cfg:  cfg,
		act:  act,
		log:  slog.Default().With("component", "hysteresis"),
		mode: High,
		buf:  NewBuffer(cfg.LongWindow),
	}
}

// Observe records one score taken at now and applies the transition rules:
//
//	High → Low  when the long-window mean is below threshold and no grace is active
//	Low  → High when the short-window mean is above threshold; starts a grace period
//
// The actuator is called only on a transition. NaN and negative scores are dropped.
func (c *Controller) Observe(score float64, now time.Time) (ModeChange, bool) {
	if math.IsNaN(score) || score < 0 {
		c.log.Debug("dropping invalid score", "score", score)
		return ModeChange{}, false
	}

	c.buf.Push(score)
	avgLong := c.buf.Mean()
	avgShort := c.buf.MeanTail(c.cfg.ShortWindow)

	switch {
	case c.mode == High && avgLong < c.cfg.Threshold && !c.GraceActive(now):
		return c.transition(Low, now, avgLong, avgShort), true
	case c.mode == Low && avgShort > c.cfg.Threshold:
		return c.transition(High, now, avgLong, avgShort), true
	}
	return ModeChange{}, false
}

func (c *Controller) transition(to Mode, now time.Time, avgLong, avgShort float64) ModeChange {
	change := ModeChange{From: c.mode, To: to, At: now, AvgLong: avgLong, AvgShort: avgShort}
	c.mode = to
	if to == High {
		c.graceUntil = now.Add(c.cfg.GracePeriod)
		change.GraceUntil = c.graceUntil
	}

	if c.act != nil {
		if err := c.act.AssertMode(to); err != nil {
			change.ActuatorErr = err
			c.log.Warn("actuator rejected mode change", "mode", to.String(), "error", err)
		}
	}

	c.log.Info("frame-rate mode changed", "change", change)
	return change
}

// Reset drops all history and returns to High without calling the actuator.
// It returns the mode held before the reset.
func (c *Controller) Reset() Mode {
	prev := c.mode
	c.mode = High
	c.graceUntil = time.Time{}
	c.buf.Reset()
	return prev
}

// Mode returns the current intended mode.
func (c *Controller) Mode() Mode { return c.mode }

// GraceUntil returns the end of the active or last grace period, zero if none.
func (c *Controller) GraceUntil() time.Time { return c.graceUntil }

// GraceActive reports whether re-entry into Low is suppressed at now.
func (c *Controller) GraceActive(now time.Time) bool {
	return !c.graceUntil.IsZero() && now.Before(c.graceUntil)
}

// Averages returns the current long and short window means (NaN when empty).
func (c *Controller) Averages() (avgLong, avgShort float64) {
	return c.buf.Mean(), c.buf.MeanTail(c.cfg.ShortWindow)
}

// Samples returns the number of scores in the history.
func (c *Controller) Samples() int { return c.buf.Len() }

// Config returns the controller tuning.
func (c *Controller) Config() Config { return c.cfg }
