package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errGrab = errors.New("BadMatch")

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	b := New(cfg)
	b.now = c.now
	return b, c
}

func fail() (int, error) { return 0, errGrab }
func ok() (int, error)   { return 42, nil }

func TestBreakerInitialState(t *testing.T) {
	b := New(DefaultConfig())
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 2})

	for i := 0; i < 3; i++ {
		if _, err := Do(b, fail); !errors.Is(err, errGrab) {
			t.Fatalf("call %d: err = %v, want the call's error", i, err)
		}
	}

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerFailsFastWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	calls := 0
	grab := func() (int, error) {
		calls++
		return fail()
	}

	_, _ = Do(b, grab)
	_, err := Do(b, grab)

	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second call short-circuited)", calls)
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b, c := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 2})
	_, _ = Do(b, fail)

	c.advance(999 * time.Millisecond)
	if _, err := Do(b, ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("before timeout: err = %v, want ErrOpen", err)
	}

	c.advance(time.Millisecond)
	v, err := Do(b, ok)
	if err != nil || v != 42 {
		t.Fatalf("Do() = (%d, %v), want (42, nil)", v, err)
	}
	if b.State() != HalfOpen {
		t.Errorf("state = %v, want HalfOpen after one of two trial successes", b.State())
	}

	_, _ = Do(b, ok)
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, c := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Second, HalfOpenSuccesses: 3})
	for i := 0; i < 3; i++ {
		_, _ = Do(b, fail)
	}

	c.advance(time.Second)
	_, _ = Do(b, fail)

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
	// The reset timeout restarts from the trial failure.
	if _, err := Do(b, ok); !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
}

func TestBreakerHook(t *testing.T) {
	var got []State
	b, c := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 1})
	b.WithHook(func(_, to State) { got = append(got, to) })

	_, _ = Do(b, fail)
	c.advance(time.Second)
	_, _ = Do(b, ok)

	want := []State{Open, HalfOpen, Closed}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transitions = %v, want %v", got, want)
		}
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})

	_, _ = Do(b, fail)
	_, _ = Do(b, fail)
	_, _ = Do(b, ok)
	_, _ = Do(b, fail)
	_, _ = Do(b, fail)

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed (failures must be consecutive)", b.State())
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = Do(b, ok)
			} else {
				_, _ = Do(b, fail)
			}
		}()
	}
	wg.Wait()

	if s := b.State(); s != Closed && s != Open && s != HalfOpen {
		t.Errorf("invalid state %d", s)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Name != "default" {
		t.Errorf("Name = %q, want default", cfg.Name)
	}
	if cfg.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", cfg.Threshold)
	}
	if cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cfg.ResetTimeout)
	}
	if cfg.HalfOpenSuccesses != 3 {
		t.Errorf("HalfOpenSuccesses = %d, want 3", cfg.HalfOpenSuccesses)
	}
}
