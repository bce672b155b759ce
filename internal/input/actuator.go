package input

import (
	"log/slog"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
	"github.com/GriffinCanCode/dynamic-fps/internal/x11"
)

// ChordPresser injects a key chord. *x11.Session satisfies it.
type ChordPresser interface {
	PressChord(modifiers []x11.Keysym, key x11.Keysym) error
}

// Chords maps each mode to the chord that selects it.
type Chords struct {
	Low  Chord
	High Chord
}

// ParseChords parses the Low and High chord names.
func ParseChords(low, high string) (Chords, error) {
	l, err := ParseChord(low)
	if err != nil {
		return Chords{}, err
	}
	h, err := ParseChord(high)
	if err != nil {
		return Chords{}, err
	}
	return Chords{Low: l, High: h}, nil
}

func (c Chords) forMode(m hysteresis.Mode) (Chord, bool) {
	switch m {
	case hysteresis.Low:
		return c.Low, true
	case hysteresis.High:
		return c.High, true
	default:
		return Chord{}, false
	}
}

// X11Actuator sends the mode's chord through XTest.
type X11Actuator struct {
	presser ChordPresser
	chords  Chords
}

// NewX11Actuator creates an actuator pressing chords through presser.
func NewX11Actuator(presser ChordPresser, chords Chords) *X11Actuator {
	return &X11Actuator{presser: presser, chords: chords}
}

// AssertMode implements hysteresis.Actuator.
func (a *X11Actuator) AssertMode(m hysteresis.Mode) error {
	chord, ok := a.chords.forMode(m)
	if !ok {
		return errors.Newf(errors.CodeActuatorFailed, "no chord bound to %s", m)
	}
	if err := a.presser.PressChord(chord.Modifiers, chord.Key); err != nil {
		return errors.Wrap(err, errors.CodeActuatorFailed, "send key chord").
			WithMetadata("chord", chord.String()).
			WithMetadata("mode", m.String())
	}
	slog.Debug("sent key chord", "mode", m.String(), "chord", chord.String())
	return nil
}

// DryRun logs the chord it would send and never fails.
type DryRun struct {
	chords Chords
	log    *slog.Logger
}

// NewDryRun creates a logging-only actuator.
func NewDryRun(chords Chords) *DryRun {
	return &DryRun{chords: chords, log: slog.Default().With("component", "input", "dry_run", true)}
}

// AssertMode implements hysteresis.Actuator.
func (d *DryRun) AssertMode(m hysteresis.Mode) error {
	chord, _ := d.chords.forMode(m)
	d.log.Info("would send key chord", "mode", m.String(), "chord", chord.String())
	return nil
}
