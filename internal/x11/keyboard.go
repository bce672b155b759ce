package x11

import (
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgb/xtest"
	"github.com/pkg/errors"
)

// Keysym values used by chord names (X11 keysymdef.h).
type Keysym = xproto.Keysym

// PressChord holds modifiers, taps key and releases the modifiers in reverse.
func (s *Session) PressChord(modifiers []Keysym, key Keysym) error {
	if err := s.ensureXTest(); err != nil {
		return err
	}

	mods := make([]xproto.Keycode, 0, len(modifiers))
	for _, sym := range modifiers {
		code, err := s.keycode(sym)
		if err != nil {
			return err
		}
		mods = append(mods, code)
	}
	keyCode, err := s.keycode(key)
	if err != nil {
		return err
	}

	seq := make([]fakeKey, 0, 2*len(mods)+2)
	for _, m := range mods {
		seq = append(seq, fakeKey{xproto.KeyPress, m})
	}
	seq = append(seq, fakeKey{xproto.KeyPress, keyCode}, fakeKey{xproto.KeyRelease, keyCode})
	for i := len(mods) - 1; i >= 0; i-- {
		seq = append(seq, fakeKey{xproto.KeyRelease, mods[i]})
	}

	for _, k := range seq {
		if err := xtest.FakeInputChecked(s.conn, k.event, byte(k.code), 0, s.root, 0, 0, 0).Check(); err != nil {
			return errors.Wrapf(err, "fake input event %d keycode %d", k.event, k.code)
		}
	}
	return nil
}

type fakeKey struct {
	event byte
	code  xproto.Keycode
}

// keycode resolves a keysym through the server's keyboard mapping.
func (s *Session) keycode(sym Keysym) (xproto.Keycode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keymap == nil {
		count := byte(s.maxKeycode - s.minKeycode + 1)
		reply, err := xproto.GetKeyboardMapping(s.conn, s.minKeycode, count).Reply()
		if err != nil {
			return 0, errors.Wrap(err, "get keyboard mapping")
		}
		s.keymap = buildKeymap(s.minKeycode, int(reply.KeysymsPerKeycode), reply.Keysyms)
	}

	code, ok := s.keymap[sym]
	if !ok {
		return 0, errors.Errorf("keysym %#x is not mapped to any keycode", uint32(sym))
	}
	return code, nil
}

// buildKeymap inverts a keycode → keysyms table, keeping the lowest keycode per keysym.
func buildKeymap(first xproto.Keycode, perCode int, syms []xproto.Keysym) map[xproto.Keysym]xproto.Keycode {
	m := make(map[xproto.Keysym]xproto.Keycode)
	if perCode <= 0 {
		return m
	}
	for i, sym := range syms {
		if sym == 0 {
			continue
		}
		code := first + xproto.Keycode(i/perCode)
		if _, seen := m[sym]; !seen {
			m[sym] = code
		}
	}
	return m
}
