// Package transitions keeps a bounded journal of frame-rate mode changes and
// fans them out to live subscribers.
package transitions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
)

// Entry is one recorded mode change.
type Entry struct {
	ID            string     `json:"id"`
	At            time.Time  `json:"at"`
	Target        string     `json:"target"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	AvgLong       float64    `json:"avg_long"`
	AvgShort      float64    `json:"avg_short"`
	GraceUntil    *time.Time `json:"grace_until,omitempty"`
	Reassert      bool       `json:"reassert,omitempty"`
	ActuatorError string     `json:"actuator_error,omitempty"`
}

// EventType distinguishes stream messages.
type EventType string

const (
	EventTransition EventType = "transition"
	EventTarget     EventType = "target"
)

// TargetState reports the target window being found or lost.
type TargetState struct {
	Title    string `json:"title"`
	Acquired bool   `json:"acquired"`
}

// Event is pushed to live subscribers.
type Event struct {
	Type       EventType    `json:"type"`
	At         time.Time    `json:"at"`
	Transition *Entry       `json:"transition,omitempty"`
	Target     *TargetState `json:"target,omitempty"`
}

// Stats are cumulative counters over the process lifetime, not just the retained entries.
type Stats struct {
	Transitions      int           `json:"transitions"`
	ToLow            int           `json:"to_low"`
	ToHigh           int           `json:"to_high"`
	ActuatorFailures int           `json:"actuator_failures"`
	TimeInLow        time.Duration `json:"time_in_low_ns"`
}

// MemoryStore is an in-memory journal safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
	stats    Stats
	lowSince time.Time
}

// NewStore creates a journal keeping maxEntries entries with an event buffer of eventBuffer.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add records change and returns the stored entry.
func (s *MemoryStore) Add(change hysteresis.ModeChange, target string, reassert bool) Entry {
	e := Entry{
		ID:       uuid.NewString(),
		At:       change.At,
		Target:   target,
		From:     change.From.String(),
		To:       change.To.String(),
		AvgLong:  change.AvgLong,
		AvgShort: change.AvgShort,
		Reassert: reassert,
	}
	if !change.GraceUntil.IsZero() {
		g := change.GraceUntil
		e.GraceUntil = &g
	}
	if change.ActuatorErr != nil {
		e.ActuatorError = change.ActuatorErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}

	s.stats.Transitions++
	if e.ActuatorError != "" {
		s.stats.ActuatorFailures++
	}
	switch change.To {
	case hysteresis.Low:
		s.stats.ToLow++
		if s.lowSince.IsZero() {
			s.lowSince = change.At
		}
	case hysteresis.High:
		s.stats.ToHigh++
		s.closeLowSpan(change.At)
	}
	return e
}

// MarkHigh ends a Low span without a recorded transition, e.g. when the
// controller is reset because the target disappeared.
func (s *MemoryStore) MarkHigh(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLowSpan(at)
}

func (s *MemoryStore) closeLowSpan(at time.Time) {
	if s.lowSince.IsZero() {
		return
	}
	if at.After(s.lowSince) {
		s.stats.TimeInLow += at.Sub(s.lowSince)
	}
	s.lowSince = time.Time{}
}

// Record adds change and emits it as a transition event.
func (s *MemoryStore) Record(change hysteresis.ModeChange, target string, reassert bool) Entry {
	e := s.Add(change, target, reassert)
	s.Emit(Event{Type: EventTransition, At: e.At, Transition: &e})
	return e
}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (s *MemoryStore) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	result := make([]Entry, len(s.entries)-start)
	copy(result, s.entries[start:])
	return result
}

// Since returns entries recorded at or after t.
func (s *MemoryStore) Since(t time.Time) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Entry{}
	for _, e := range s.entries {
		if !e.At.Before(t) {
			result = append(result, e)
		}
	}
	return result
}

// Stats returns the cumulative counters; an open Low span is counted up to now.
func (s *MemoryStore) Stats(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.stats
	if !s.lowSince.IsZero() && now.After(s.lowSince) {
		st.TimeInLow += now.Sub(s.lowSince)
	}
	return st
}

// Len returns the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Events returns the channel for journal events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event (non-blocking); events are dropped when nobody keeps up.
func (s *MemoryStore) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
