// Package screen is the frame source: it finds the target window by title and
// produces small single-channel frames of its current contents.
package screen

import (
	"image"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/resilience"
)

// Window is a located window in screen coordinates.
type Window struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Source locates the target window and captures downsampled luma frames.
type Source interface {
	// Locate returns the first window whose title contains title; ok is false if none does.
	Locate(title string) (w Window, ok bool, err error)
	// Capture grabs w and reduces it to a grayscale frame.
	Capture(w Window) (*image.Gray, error)
	Close()
}

// Config holds capture settings.
type Config struct {
	Scale   float64 // linear downscale factor applied before scoring
	Breaker resilience.Config

	// OnBreakerChange, if set, observes capture breaker transitions.
	OnBreakerChange func(from, to resilience.State)
}

// DefaultConfig returns capture defaults.
func DefaultConfig() Config {
	return Config{
		Scale: DefaultScale,
		Breaker: resilience.Config{
			Name:              "capture",
			Threshold:         CaptureBreakerThreshold,
			ResetTimeout:      CaptureBreakerReset,
			HalfOpenSuccesses: CaptureBreakerHalfOpenSuccesses,
		},
	}
}

// backend implements platform-specific lookup and raw capture
type backend interface {
	findWindow(title string) (Window, bool, error)
	captureRaw(w Window) (image.Image, error)
	cleanup()
}

// baseSource provides shared error classification, breaker and downsampling
type baseSource struct {
	backend
	scale   float64
	breaker *resilience.Breaker
}

func newBase(b backend, cfg Config) *baseSource {
	if cfg.Scale <= 0 || cfg.Scale > 1 {
		cfg.Scale = DefaultScale
	}
	breaker := resilience.New(cfg.Breaker)
	if cfg.OnBreakerChange != nil {
		breaker.WithHook(cfg.OnBreakerChange)
	}
	return &baseSource{
		backend: b,
		scale:   cfg.Scale,
		breaker: breaker,
	}
}

func (s *baseSource) Locate(title string) (Window, bool, error) {
	w, ok, err := s.findWindow(title)
	if err != nil {
		return Window{}, false, errors.Wrap(err, errors.CodeDisplayUnavailable, "window lookup failed").
			WithMetadata("title", title)
	}
	return w, ok, nil
}

func (s *baseSource) Capture(w Window) (*image.Gray, error) {
	raw, err := resilience.Do(s.breaker, func() (image.Image, error) {
		return s.captureRaw(w)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCaptureFailed, "window capture failed").
			WithMetadata("breaker", s.breaker.State().String())
	}
	return Downsample(raw, s.scale), nil
}

func (s *baseSource) Close() {
	s.cleanup()
}
