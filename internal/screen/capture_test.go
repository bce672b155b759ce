package screen

import (
	stderrors "errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/resilience"
)

type mockBackend struct {
	window  Window
	found   bool
	findErr error
	img     image.Image
	grabErr error
	grabs   int
	cleaned bool
}

func (m *mockBackend) findWindow(string) (Window, bool, error) { return m.window, m.found, m.findErr }
func (m *mockBackend) captureRaw(Window) (image.Image, error) {
	m.grabs++
	return m.img, m.grabErr
}
func (m *mockBackend) cleanup() { m.cleaned = true }

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestLocateFound(t *testing.T) {
	want := Window{Left: 10, Top: 20, Right: 650, Bottom: 500}
	s := newBase(&mockBackend{window: want, found: true}, DefaultConfig())

	got, ok, err := s.Locate("VRChat")
	if err != nil || !ok {
		t.Fatalf("Locate() = %v, %v, %v", got, ok, err)
	}
	if got != want {
		t.Errorf("Locate() = %+v, want %+v", got, want)
	}
}

func TestLocateNotFoundIsNotAnError(t *testing.T) {
	s := newBase(&mockBackend{}, DefaultConfig())
	if _, ok, err := s.Locate("VRChat"); ok || err != nil {
		t.Errorf("Locate() ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestLocateError(t *testing.T) {
	s := newBase(&mockBackend{findErr: stderrors.New("connection reset")}, DefaultConfig())
	_, _, err := s.Locate("VRChat")
	if !errors.IsCode(err, errors.CodeDisplayUnavailable) {
		t.Errorf("Locate() error = %v, want DISPLAY_UNAVAILABLE", err)
	}
}

func TestCaptureDownsamples(t *testing.T) {
	mb := &mockBackend{img: solidRGBA(100, 50, color.RGBA{R: 255, G: 255, B: 255, A: 255})}
	s := newBase(mb, DefaultConfig())

	frame, err := s.Capture(Window{Right: 100, Bottom: 50})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if b := frame.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("frame size = %dx%d, want 20x10", b.Dx(), b.Dy())
	}
	if v := frame.GrayAt(5, 5).Y; v != 255 {
		t.Errorf("luma = %d, want 255", v)
	}
}

func TestCaptureFailure(t *testing.T) {
	mb := &mockBackend{grabErr: stderrors.New("BadMatch")}
	s := newBase(mb, DefaultConfig())

	_, err := s.Capture(Window{Right: 10, Bottom: 10})
	if !errors.IsCode(err, errors.CodeCaptureFailed) {
		t.Errorf("Capture() error = %v, want CAPTURE_FAILED", err)
	}
}

func TestCaptureBreakerOpens(t *testing.T) {
	mb := &mockBackend{grabErr: stderrors.New("BadMatch")}
	cfg := DefaultConfig()
	cfg.Breaker = resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}
	var opened int
	cfg.OnBreakerChange = func(_, to resilience.State) {
		if to == resilience.Open {
			opened++
		}
	}
	s := newBase(mb, cfg)

	for i := 0; i < 5; i++ {
		_, _ = s.Capture(Window{Right: 10, Bottom: 10})
	}

	if mb.grabs != 2 {
		t.Errorf("grabs = %d, want 2 (breaker should stop further attempts)", mb.grabs)
	}
	_, err := s.Capture(Window{Right: 10, Bottom: 10})
	if !stderrors.Is(err, resilience.ErrOpen) {
		t.Errorf("error = %v, want wrapped ErrOpen", err)
	}
	if !errors.IsCode(err, errors.CodeCaptureFailed) {
		t.Errorf("open breaker should still classify as CAPTURE_FAILED, got %v", err)
	}
	if opened != 1 {
		t.Errorf("breaker hook saw %d openings, want 1", opened)
	}
}

func TestNewBaseScaleDefault(t *testing.T) {
	s := newBase(&mockBackend{}, Config{Scale: 3})
	if s.scale != DefaultScale {
		t.Errorf("scale = %v, want %v", s.scale, DefaultScale)
	}
}

func TestClose(t *testing.T) {
	mb := &mockBackend{}
	newBase(mb, DefaultConfig()).Close()
	if !mb.cleaned {
		t.Error("Close should call backend cleanup")
	}
}

func TestDownsampleLuma(t *testing.T) {
	img := solidRGBA(10, 10, color.RGBA{R: 255, A: 255})
	g := Downsample(img, 0.5)

	if b := g.Bounds(); b.Dx() != 5 || b.Dy() != 5 {
		t.Fatalf("size = %dx%d, want 5x5", b.Dx(), b.Dy())
	}
	want := color.GrayModel.Convert(color.RGBA{R: 255, A: 255}).(color.Gray).Y
	if got := g.GrayAt(2, 2).Y; got != want {
		t.Errorf("luma = %d, want %d", got, want)
	}
}

func TestDownsampleMinimumSize(t *testing.T) {
	g := Downsample(solidRGBA(3, 2, color.RGBA{A: 255}), 0.1)
	if b := g.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("size = %dx%d, want 1x1", b.Dx(), b.Dy())
	}
}

func TestDownsampleOffsetBounds(t *testing.T) {
	img := solidRGBA(40, 40, color.RGBA{G: 200, A: 255}).SubImage(image.Rect(20, 20, 40, 40))
	g := Downsample(img, 0.5)
	if g.Bounds().Min != (image.Point{}) {
		t.Errorf("bounds = %v, want origin at 0,0", g.Bounds())
	}
}
