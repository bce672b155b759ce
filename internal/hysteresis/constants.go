// Package hysteresis turns a noisy stream of frame similarity scores into a
// debounced High/Low frame-rate mode.
package hysteresis

import "time"

// Controller defaults
const (
	// Distance below which the long-window average counts as "static"
	DefaultThreshold = 0.25

	// Scores kept for the entry (High → Low) average
	DefaultLongWindow = 27

	// Trailing scores used for the exit (Low → High) average
	DefaultShortWindow = 4

	// Cooldown after a Low → High transition
	DefaultGracePeriod = 13 * time.Second
)
