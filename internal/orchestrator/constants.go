// Package orchestrator runs the sampling loop: locate the target window,
// capture it, score the frame and feed the hysteresis controller.
package orchestrator

import "time"

// Driver loop constants
const (
	// Sampling rate used when none is configured
	DefaultCaptureRate = 24.0

	// Interval between diagnostic snapshots in the log
	DefaultDiagnosticInterval = 500 * time.Millisecond

	// Transition journal configuration
	JournalMaxEntries  = 256
	JournalEventBuffer = 64

	// Log tag for spans of one sampling cycle
	CycleSpanName = "cycle"
)
