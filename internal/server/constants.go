// Package server exposes the limiter's read-only status surface: JSON over
// HTTP, a WebSocket event stream, Prometheus metrics and gRPC health.
package server

import "time"

// Server configuration constants
const (
	// Journal entries returned by /api/transitions when no limit is given
	DefaultTransitionLimit = 50

	// Upper bound for ?limit=
	MaxTransitionLimit = 1000

	// Per-connection status requests allowed per window
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Messages queued per WebSocket client before new ones are dropped
	ClientSendBuffer = 64

	// Deadline for a single WebSocket write
	WriteTimeout = 2 * time.Second

	// Graceful shutdown budget for the HTTP listener
	ShutdownTimeout = 5 * time.Second

	// gRPC health service name reporting target acquisition
	HealthService = "fpslimiter"
)
