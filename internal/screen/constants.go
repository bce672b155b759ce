package screen

import "time"

// Capture constants
const (
	// Linear scale applied to captured frames (20% of width and height)
	DefaultScale = 0.2

	// Consecutive grab failures before capture is suspended
	CaptureBreakerThreshold = 5

	// Suspension before a trial grab; short so a recovered window resumes quickly
	CaptureBreakerReset = time.Second

	// Successful trial grabs needed to resume normal capture
	CaptureBreakerHalfOpenSuccesses = 1
)
