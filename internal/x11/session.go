// Package x11 talks to the X server over the pure-Go xgb protocol bindings:
// window lookup by title, root-window image grabs and XTest key injection.
package x11

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgb/xtest"
	"github.com/pkg/errors"
)

var atomNames = []string{
	"_NET_CLIENT_LIST",
	"_NET_WM_NAME",
	"WM_NAME",
	"UTF8_STRING",
}

// Session is one connection to the X server shared by capture and input.
type Session struct {
	conn   *xgb.Conn
	root   xproto.Window
	width  uint16
	height uint16
	atoms  map[string]xproto.Atom

	minKeycode xproto.Keycode
	maxKeycode xproto.Keycode

	xtestOnce sync.Once
	xtestErr  error

	mu     sync.Mutex
	keymap map[xproto.Keysym]xproto.Keycode
}

// Connect opens a session on display; an empty display uses $DISPLAY.
func Connect(display string) (*Session, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to X display %q", display)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	s := &Session{
		conn:       conn,
		root:       screen.Root,
		width:      screen.WidthInPixels,
		height:     screen.HeightInPixels,
		atoms:      make(map[string]xproto.Atom, len(atomNames)),
		minKeycode: setup.MinKeycode,
		maxKeycode: setup.MaxKeycode,
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		s.atoms[name] = reply.Atom
	}

	return s, nil
}

// Close closes the connection.
func (s *Session) Close() {
	s.conn.Close()
}

// ScreenSize returns the default screen dimensions in pixels.
func (s *Session) ScreenSize() (width, height int) {
	return int(s.width), int(s.height)
}

func (s *Session) getProperty(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(s.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "get property")
	}
	return reply.Value, nil
}

// windowName returns _NET_WM_NAME, falling back to WM_NAME.
func (s *Session) windowName(window xproto.Window) string {
	data, err := s.getProperty(window, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = s.getProperty(window, s.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

// decodeWindows parses a 32-bit WINDOW[] property value.
func decodeWindows(data []byte) []xproto.Window {
	out := make([]xproto.Window, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		out = append(out, xproto.Window(binary.LittleEndian.Uint32(data[i:])))
	}
	return out
}

// ensureXTest initializes the XTest extension once.
func (s *Session) ensureXTest() error {
	s.xtestOnce.Do(func() {
		if err := xtest.Init(s.conn); err != nil {
			s.xtestErr = errors.Wrap(err, "XTEST extension unavailable")
		}
	})
	return s.xtestErr
}
