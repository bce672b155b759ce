package x11

import (
	"strings"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// Rect is a window's outer bounds in screen coordinates.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns Right - Left.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Clip intersects r with the screen [0, width) x [0, height).
func (r Rect) Clip(width, height int) Rect {
	return Rect{
		Left:   max(r.Left, 0),
		Top:    max(r.Top, 0),
		Right:  min(r.Right, width),
		Bottom: min(r.Bottom, height),
	}
}

// FindWindow returns the bounds of the first top-level window whose title
// contains title. ok is false when nothing matches.
func (s *Session) FindWindow(title string) (Rect, bool, error) {
	windows, err := s.clientWindows()
	if err != nil {
		return Rect{}, false, err
	}

	for _, w := range windows {
		if !strings.Contains(s.windowName(w), title) {
			continue
		}
		rect, err := s.bounds(w)
		if err != nil {
			// Window unmapped between listing and query: treat as not found.
			continue
		}
		return rect, true, nil
	}
	return Rect{}, false, nil
}

// clientWindows lists managed windows from _NET_CLIENT_LIST, or the root's
// children when no EWMH window manager is running.
func (s *Session) clientWindows() ([]xproto.Window, error) {
	data, err := s.getProperty(s.root, s.atoms["_NET_CLIENT_LIST"], xproto.AtomWindow, 4096)
	if err == nil && len(data) >= 4 {
		return decodeWindows(data), nil
	}

	reply, err := xproto.QueryTree(s.conn, s.root).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "query root window tree")
	}
	return reply.Children, nil
}

func (s *Session) bounds(w xproto.Window) (Rect, error) {
	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(w)).Reply()
	if err != nil {
		return Rect{}, errors.Wrap(err, "get geometry")
	}
	origin, err := xproto.TranslateCoordinates(s.conn, w, s.root, 0, 0).Reply()
	if err != nil {
		return Rect{}, errors.Wrap(err, "translate coordinates")
	}
	left, top := int(origin.DstX), int(origin.DstY)
	return Rect{
		Left:   left,
		Top:    top,
		Right:  left + int(geom.Width),
		Bottom: top + int(geom.Height),
	}, nil
}
