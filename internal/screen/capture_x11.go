package screen

import (
	"image"

	"github.com/GriffinCanCode/dynamic-fps/internal/x11"
)

type x11Backend struct{ session *x11.Session }

func (b *x11Backend) findWindow(title string) (Window, bool, error) {
	r, ok, err := b.session.FindWindow(title)
	return Window(r), ok, err
}

func (b *x11Backend) captureRaw(w Window) (image.Image, error) {
	return b.session.Grab(x11.Rect(w))
}

// The session is shared with the input actuator and closed by its owner.
func (b *x11Backend) cleanup() {}

// NewX11 creates a frame source reading from an X server session.
func NewX11(session *x11.Session, cfg Config) Source {
	return newBase(&x11Backend{session: session}, cfg)
}
