package x11

import (
	"image"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// ErrEmptyRegion is returned when a grab region lies entirely off screen.
var ErrEmptyRegion = errors.New("capture region is empty after clipping to the screen")

// Grab copies the on-screen pixels inside r from the root window.
// r is clipped to the screen first; the result's bounds start at (0, 0).
func (s *Session) Grab(r Rect) (*image.RGBA, error) {
	r = r.Clip(s.ScreenSize())
	if r.Empty() {
		return nil, ErrEmptyRegion
	}

	reply, err := xproto.GetImage(s.conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.root),
		int16(r.Left), int16(r.Top), uint16(r.Width()), uint16(r.Height()), 0xffffffff).Reply()
	if err != nil {
		return nil, errors.Wrapf(err, "get image %dx%d+%d+%d", r.Width(), r.Height(), r.Left, r.Top)
	}

	img, err := bgrxToRGBA(reply.Data, r.Width(), r.Height())
	if err != nil {
		return nil, errors.Wrapf(err, "decode image (depth %d)", reply.Depth)
	}
	return img, nil
}

// bgrxToRGBA converts a 32 bits-per-pixel ZPixmap (B, G, R, pad) into RGBA.
func bgrxToRGBA(data []byte, width, height int) (*image.RGBA, error) {
	if len(data) < width*height*4 {
		return nil, errors.Errorf("pixmap has %d bytes, need %d for %dx%d", len(data), width*height*4, width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		src := data[i*4 : i*4+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0] = src[2]
		dst[1] = src[1]
		dst[2] = src[0]
		dst[3] = 0xff
	}
	return img, nil
}
