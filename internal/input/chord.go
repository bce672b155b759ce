// Package input applies frame-rate modes to the target application by
// sending the key chords it binds to its High and Low limits.
package input

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/x11"
)

// Chord is a key pressed while holding zero or more modifiers.
type Chord struct {
	Modifiers []x11.Keysym
	Key       x11.Keysym
	name      string
}

// String returns the chord as it was written.
func (c Chord) String() string { return c.name }

var modifierSyms = map[string]x11.Keysym{
	"ctrl":    0xffe3,
	"control": 0xffe3,
	"alt":     0xffe9,
	"shift":   0xffe1,
	"super":   0xffeb,
}

var namedKeySyms = map[string]x11.Keysym{
	"space":       0x0020,
	"minus":       0x002d,
	"equal":       0x003d,
	"tab":         0xff09,
	"return":      0xff0d,
	"escape":      0xff1b,
	"kp_add":      0xffab,
	"kp_subtract": 0xffad,
	"kp_multiply": 0xffaa,
	"kp_divide":   0xffaf,
}

// ParseChord parses names such as "ctrl+alt+kp_8". The last element is the
// key; every other element must be a modifier.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Chord{}, invalidChord(s, "missing key")
	}

	c := Chord{name: s}
	for _, p := range parts[:len(parts)-1] {
		sym, ok := modifierSyms[strings.TrimSpace(p)]
		if !ok {
			return Chord{}, invalidChord(s, fmt.Sprintf("unknown modifier %q", p))
		}
		c.Modifiers = append(c.Modifiers, sym)
	}

	key, ok := keySym(strings.TrimSpace(parts[len(parts)-1]))
	if !ok {
		return Chord{}, invalidChord(s, fmt.Sprintf("unknown key %q", parts[len(parts)-1]))
	}
	c.Key = key
	return c, nil
}

// keySym resolves a key name: kp_0..kp_9, f1..f12, a single letter or
// digit, or one of namedKeySyms.
func keySym(name string) (x11.Keysym, bool) {
	if sym, ok := namedKeySyms[name]; ok {
		return sym, true
	}
	if len(name) == 1 {
		ch := name[0]
		if ('a' <= ch && ch <= 'z') || ('0' <= ch && ch <= '9') {
			return x11.Keysym(ch), true
		}
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(name, "kp_%d", &n); err == nil && name == fmt.Sprintf("kp_%d", n) && 0 <= n && n <= 9 {
		return x11.Keysym(0xffb0 + n), true
	}
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && name == fmt.Sprintf("f%d", n) && 1 <= n && n <= 12 {
		return x11.Keysym(0xffbe + n - 1), true
	}
	return 0, false
}

func invalidChord(s, reason string) error {
	return errors.Newf(errors.CodeConfigInvalid, "invalid key chord %q: %s", s, reason)
}
