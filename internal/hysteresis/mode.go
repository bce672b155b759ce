package hysteresis

import (
	"fmt"
	"log/slog"
	"time"
)

// Mode is the frame-rate limit the controller wants asserted.
type Mode uint8

const (
	High Mode = iota // no throttling asserted
	Low              // throttling asserted
)

func (m Mode) String() string {
	switch m {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ModeChange describes one transition emitted by Observe.
type ModeChange struct {
	From       Mode
	To         Mode
	At         time.Time
	AvgLong    float64
	AvgShort   float64
	GraceUntil time.Time // zero unless To == High
	// ActuatorErr is the actuator's failure, if any. The mode flipped regardless.
	ActuatorErr error
}

// LogValue implements slog.LogValuer for structured logging.
func (c ModeChange) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("from", c.From.String()),
		slog.String("to", c.To.String()),
		slog.Time("at", c.At),
		slog.Float64("avg_long", c.AvgLong),
		slog.Float64("avg_short", c.AvgShort),
	}
	if !c.GraceUntil.IsZero() {
		attrs = append(attrs, slog.Time("grace_until", c.GraceUntil))
	}
	if c.ActuatorErr != nil {
		attrs = append(attrs, slog.String("actuator_error", c.ActuatorErr.Error()))
	}
	return slog.GroupValue(attrs...)
}
