// Package resilience provides the circuit breaker guarding screen capture
// and the backoff retry used when opening the display.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State uint32

const (
	Closed   State = iota // calls pass through
	Open                  // calls fail fast with ErrOpen
	HalfOpen              // trial calls after the reset timeout
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned while the breaker is failing fast.
var ErrOpen = errors.New("circuit breaker open")

// Breaker opens after Threshold consecutive failures. Once ResetTimeout has
// passed since the last failure it lets calls through again half-open:
// HalfOpenSuccesses successes close it, any failure reopens it.
type Breaker struct {
	cfg  Config
	hook func(from, to State)
	now  func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// WithHook sets a state change callback. It runs with the breaker locked and
// must not call back into it.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.hook = fn
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open, and records the outcome.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	v, err := fn()
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
		return ErrOpen
	}
	b.setLocked(HalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.lastFailure = b.now()
		b.failures++
		if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
			b.setLocked(Open)
		}
		return
	}

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.setLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

func (b *Breaker) setLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0

	switch to {
	case Closed:
		b.failures = 0
		slog.Info("circuit breaker closed", "breaker", b.cfg.Name)
	case Open:
		slog.Warn("circuit breaker opened", "breaker", b.cfg.Name, "failures", b.failures, "retry_in", b.cfg.ResetTimeout)
	case HalfOpen:
		slog.Info("circuit breaker half-open", "breaker", b.cfg.Name)
	}

	if b.hook != nil {
		b.hook(from, to)
	}
}
