// Package detect decides whether a subject is in front of the camera.
package detect

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/noriah/pulsecat/frame"
	"gonum.org/v1/gonum/stat"
)

// Detector reports whether a subject is present in region of f, and the box
// it found the subject in.
type Detector interface {
	Detect(f *frame.Frame, region image.Rectangle) (bool, image.Rectangle)
}

// Func adapts a plain function to a Detector.
type Func func(*frame.Frame, image.Rectangle) (bool, image.Rectangle)

func (fn Func) Detect(f *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
	return fn(f, r)
}

// Always reports a subject in the whole region on every frame.
type Always struct{}

func (Always) Detect(_ *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
	return true, r
}

// Builder makes a detector from its options.
type Builder func(Options) (Detector, error)

// Options are passed to every builder. Builders ignore what they do not use.
type Options struct {
	Cascade  string  // classifier file for cascade detectors
	Fraction float64 // share of skin pixels needed by the skin detector
}

var detectors = map[string]Builder{
	"always": func(Options) (Detector, error) { return Always{}, nil },
	"skin": func(o Options) (Detector, error) {
		s := NewSkin()
		if o.Fraction > 0 {
			s.Fraction = o.Fraction
		}
		return s, nil
	},
}

// Register adds a named detector. Not thread-safe; call it from init.
func Register(name string, b Builder) {
	detectors[name] = b
}

// New builds the named detector.
func New(name string, opts Options) (Detector, error) {
	b, ok := detectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector %q", name)
	}
	return b(opts)
}

// Names lists the registered detectors.
func Names() []string {
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Skin classifies pixels by their chroma and reports a subject when enough of
// the region looks like skin. The box is the bounding box of the skin pixels.
type Skin struct {
	CbMin, CbMax uint8
	CrMin, CrMax uint8
	Fraction     float64

	mask []float64
}

// NewSkin returns a skin detector with the usual YCbCr chroma bounds.
func NewSkin() *Skin {
	return &Skin{
		CbMin: 77, CbMax: 127,
		CrMin: 133, CrMax: 173,
		Fraction: 0.3,
	}
}

func (s *Skin) Detect(f *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return false, r
	}

	n := r.Dx() * r.Dy()
	if cap(s.mask) < n {
		s.mask = make([]float64, n)
	}
	s.mask = s.mask[:n]

	box := image.Rectangle{}
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			off := f.PixOffset(x, y)
			_, cb, cr := color.RGBToYCbCr(f.Pix[off+2], f.Pix[off+1], f.Pix[off])

			s.mask[i] = 0
			if cb >= s.CbMin && cb <= s.CbMax && cr >= s.CrMin && cr <= s.CrMax {
				s.mask[i] = 1
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
			i++
		}
	}

	if stat.Mean(s.mask, nil) < s.Fraction {
		return false, r
	}

	return true, box
}
