// Package similarity scores how different two frames look. A score is the
// Hamming distance between perceptual fingerprints: 0 means perceptually
// identical, larger means more change.
package similarity

import (
	"image"
	"strings"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
)

// Method selects the fingerprint algorithm.
type Method string

const (
	MethodAverage    Method = "average"
	MethodDifference Method = "difference"
	MethodPerception Method = "perception"
)

// Methods lists the supported fingerprint methods.
var Methods = []Method{MethodAverage, MethodDifference, MethodPerception}

// ParseMethod resolves a method name, case-insensitively. An empty name is the average hash.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	if m == "" {
		return MethodAverage, nil
	}
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Newf(errors.CodeConfigInvalid, "unknown hash method %q", name).
		WithMetadata("supported", "average, difference, perception")
}

// Scorer measures the distance between two frames.
type Scorer interface {
	Score(a, b image.Image) (float64, error)
}

// Fingerprint is a frame's perceptual hash.
type Fingerprint = *goimagehash.ImageHash

// HashScorer scores frames by fingerprint distance.
type HashScorer struct {
	method Method
	hash   func(image.Image) (*goimagehash.ImageHash, error)
}

// NewHashScorer returns a scorer for method.
func NewHashScorer(method Method) (*HashScorer, error) {
	s := &HashScorer{method: method}
	switch method {
	case MethodAverage:
		s.hash = goimagehash.AverageHash
	case MethodDifference:
		s.hash = goimagehash.DifferenceHash
	case MethodPerception:
		s.hash = goimagehash.PerceptionHash
	default:
		return nil, errors.Newf(errors.CodeConfigInvalid, "unknown hash method %q", method)
	}
	return s, nil
}

// Method returns the fingerprint method in use.
func (s *HashScorer) Method() Method { return s.method }

// Fingerprint hashes img.
func (s *HashScorer) Fingerprint(img image.Image) (Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New(errors.CodeScoreFailed, "cannot fingerprint an empty frame")
	}
	h, err := s.hash(img)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeScoreFailed, "fingerprint failed").
			WithMetadata("method", string(s.method))
	}
	return h, nil
}

// Compare returns the Hamming distance between two fingerprints.
func (s *HashScorer) Compare(a, b Fingerprint) (float64, error) {
	if a == nil || b == nil {
		return 0, errors.New(errors.CodeScoreFailed, "missing fingerprint")
	}
	d, err := a.Distance(b)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeScoreFailed, "fingerprint distance failed")
	}
	return float64(d), nil
}

// Score fingerprints both frames and compares them.
func (s *HashScorer) Score(a, b image.Image) (float64, error) {
	ha, err := s.Fingerprint(a)
	if err != nil {
		return 0, err
	}
	hb, err := s.Fingerprint(b)
	if err != nil {
		return 0, err
	}
	return s.Compare(ha, hb)
}
