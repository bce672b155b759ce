package transitions

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func toLow(at time.Time) hysteresis.ModeChange {
	return hysteresis.ModeChange{From: hysteresis.High, To: hysteresis.Low, At: at, AvgLong: 0.1, AvgShort: 0}
}

func toHigh(at time.Time) hysteresis.ModeChange {
	return hysteresis.ModeChange{From: hysteresis.Low, To: hysteresis.High, At: at, AvgLong: 0.5, AvgShort: 2, GraceUntil: at.Add(13 * time.Second)}
}

func TestStoreAdd(t *testing.T) {
	s := NewStore(30, 10)
	e := s.Add(toHigh(t0), "VRChat", false)

	if e.ID == "" {
		t.Error("entry should have an ID")
	}
	if e.From != "low" || e.To != "high" || e.Target != "VRChat" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.GraceUntil == nil || !e.GraceUntil.Equal(t0.Add(13*time.Second)) {
		t.Errorf("GraceUntil = %v", e.GraceUntil)
	}
	if got := s.Recent(0); len(got) != 1 || got[0].ID != e.ID {
		t.Errorf("Recent(0) = %+v", got)
	}
}

func TestStoreLowEntryHasNoGrace(t *testing.T) {
	s := NewStore(30, 10)
	if e := s.Add(toLow(t0), "VRChat", false); e.GraceUntil != nil {
		t.Errorf("GraceUntil = %v, want nil", e.GraceUntil)
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, 10)
	for i := 0; i < 10; i++ {
		s.Add(toLow(t0.Add(time.Duration(i)*time.Second)), "VRChat", false)
	}

	if s.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", s.Len())
	}
	if got := s.Recent(0)[0].At; !got.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("oldest retained At = %v, want t0+5s", got)
	}
}

func TestRecentLimit(t *testing.T) {
	s := NewStore(30, 10)
	for i := 0; i < 4; i++ {
		s.Add(toLow(t0.Add(time.Duration(i)*time.Second)), "VRChat", false)
	}

	got := s.Recent(2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if !got[1].At.Equal(t0.Add(3 * time.Second)) {
		t.Errorf("newest At = %v, want t0+3s", got[1].At)
	}
	if len(s.Recent(100)) != 4 {
		t.Error("Recent(100) should return everything")
	}
}

func TestSince(t *testing.T) {
	s := NewStore(30, 10)
	s.Add(toLow(t0), "VRChat", false)
	s.Add(toHigh(t0.Add(time.Minute)), "VRChat", false)

	if got := s.Since(t0.Add(30 * time.Second)); len(got) != 1 || got[0].To != "high" {
		t.Errorf("Since = %+v", got)
	}
}

func TestStatsTimeInLow(t *testing.T) {
	s := NewStore(30, 10)
	s.Add(toLow(t0), "VRChat", false)
	s.Add(toHigh(t0.Add(10*time.Second)), "VRChat", false)
	s.Add(toLow(t0.Add(20*time.Second)), "VRChat", false)

	st := s.Stats(t0.Add(25 * time.Second))
	if st.Transitions != 3 || st.ToLow != 2 || st.ToHigh != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.TimeInLow != 15*time.Second {
		t.Errorf("TimeInLow = %v, want 15s", st.TimeInLow)
	}

	s.MarkHigh(t0.Add(30 * time.Second))
	if got := s.Stats(t0.Add(time.Hour)).TimeInLow; got != 20*time.Second {
		t.Errorf("TimeInLow after MarkHigh = %v, want 20s", got)
	}
}

func TestActuatorFailureRecorded(t *testing.T) {
	s := NewStore(30, 10)
	c := toLow(t0)
	c.ActuatorErr = stderrors.New("XTEST extension unavailable")

	e := s.Add(c, "VRChat", false)
	if e.ActuatorError != "XTEST extension unavailable" {
		t.Errorf("ActuatorError = %q", e.ActuatorError)
	}
	if s.Stats(t0).ActuatorFailures != 1 {
		t.Error("actuator failure not counted")
	}
}

func TestRecordEmits(t *testing.T) {
	s := NewStore(30, 10)
	e := s.Record(toHigh(t0), "VRChat", true)

	select {
	case ev := <-s.Events():
		if ev.Type != EventTransition || ev.Transition == nil || ev.Transition.ID != e.ID {
			t.Errorf("unexpected event: %+v", ev)
		}
		if !ev.Transition.Reassert {
			t.Error("reassert flag lost")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEmitNonBlocking(t *testing.T) {
	s := NewStore(30, 1) // Small buffer

	s.Emit(Event{Type: EventTarget, Target: &TargetState{Title: "VRChat", Acquired: true}})

	done := make(chan struct{})
	go func() {
		s.Emit(Event{Type: EventTarget, Target: &TargetState{Title: "VRChat"}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Emit blocked when channel was full")
	}
}
