// Package screen turns consecutive captured frames into similarity scores.
package screen

import (
	"image"

	"github.com/GriffinCanCode/dynamic-fps/internal/similarity"
)

// fingerprinter is implemented by scorers that can hash a frame once and
// compare hashes later, so only the previous fingerprint needs keeping.
type fingerprinter interface {
	Fingerprint(img image.Image) (similarity.Fingerprint, error)
	Compare(a, b similarity.Fingerprint) (float64, error)
}

// Processor scores each frame against the one before it.
// It is owned by the driver loop and not safe for concurrent use.
type Processor struct {
	scorer similarity.Scorer
	fp     fingerprinter

	prev      image.Image
	prevPrint similarity.Fingerprint
	frames    uint64
}

// NewProcessor creates a processor with no previous frame.
func NewProcessor(scorer similarity.Scorer) *Processor {
	p := &Processor{scorer: scorer}
	if fp, ok := scorer.(fingerprinter); ok {
		p.fp = fp
	}
	return p
}

// Process returns the distance between frame and the previous frame.
// ok is false for the first frame after construction or Reset. On error the
// previous frame is kept so the next cycle still has a baseline.
func (p *Processor) Process(frame image.Image) (score float64, ok bool, err error) {
	if p.fp != nil {
		return p.processPrint(frame)
	}

	if p.prev == nil {
		p.prev = frame
		p.frames++
		return 0, false, nil
	}
	score, err = p.scorer.Score(p.prev, frame)
	if err != nil {
		return 0, false, err
	}
	p.prev = frame
	p.frames++
	return score, true, nil
}

func (p *Processor) processPrint(frame image.Image) (float64, bool, error) {
	cur, err := p.fp.Fingerprint(frame)
	if err != nil {
		return 0, false, err
	}
	if p.prevPrint == nil {
		p.prevPrint = cur
		p.frames++
		return 0, false, nil
	}
	score, err := p.fp.Compare(p.prevPrint, cur)
	if err != nil {
		return 0, false, err
	}
	p.prevPrint = cur
	p.frames++
	return score, true, nil
}

// Reset drops the previous frame.
func (p *Processor) Reset() {
	p.prev = nil
	p.prevPrint = nil
}

// HasPrevious reports whether a baseline frame is held.
func (p *Processor) HasPrevious() bool {
	return p.prev != nil || p.prevPrint != nil
}

// Frames returns the number of frames accepted since construction.
func (p *Processor) Frames() uint64 { return p.frames }
