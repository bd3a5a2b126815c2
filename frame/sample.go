package frame

import "github.com/pkg/errors"

// Sample is a height x width x channels array of float64 values, interleaved
// the same way as Frame.
type Sample struct {
	Height   int
	Width    int
	Channels int
	Pix      []float64
}

// NewSample returns a zero valued sample.
func NewSample(height, width, channels int) *Sample {
	return &Sample{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float64, height*width*channels),
	}
}

// Len is the number of values in the sample.
func (s *Sample) Len() int {
	return len(s.Pix)
}

// Index returns the offset of (y, x, c) in Pix.
func (s *Sample) Index(y, x, c int) int {
	return (y*s.Width+x)*s.Channels + c
}

// At returns the value at (y, x, c).
func (s *Sample) At(y, x, c int) float64 {
	return s.Pix[s.Index(y, x, c)]
}

// Set sets the value at (y, x, c).
func (s *Sample) Set(y, x, c int, v float64) {
	s.Pix[s.Index(y, x, c)] = v
}

// SameShape reports whether o has the same dimensions as s.
func (s *Sample) SameShape(o *Sample) bool {
	return s.Height == o.Height && s.Width == o.Width && s.Channels == o.Channels
}

// CopyFrom overwrites s with the values of src.
func (s *Sample) CopyFrom(src *Sample) error {
	if !s.SameShape(src) {
		return errors.Errorf("shape mismatch: %dx%dx%d <- %dx%dx%d",
			s.Height, s.Width, s.Channels, src.Height, src.Width, src.Channels)
	}

	copy(s.Pix, src.Pix)
	return nil
}

// Clone returns a deep copy of s.
func (s *Sample) Clone() *Sample {
	c := NewSample(s.Height, s.Width, s.Channels)
	copy(c.Pix, s.Pix)
	return c
}

// Scale multiplies every value by a.
func (s *Sample) Scale(a float64) {
	for i := range s.Pix {
		s.Pix[i] *= a
	}
}

// Fill sets every value to v.
func (s *Sample) Fill(v float64) {
	for i := range s.Pix {
		s.Pix[i] = v
	}
}

// Crop returns the top-left height x width part of s. It never pads: asking
// for more than s holds is an error.
func (s *Sample) Crop(height, width int) (*Sample, error) {
	if height > s.Height || width > s.Width {
		return nil, errors.Errorf("cannot crop %dx%d sample to %dx%d",
			s.Height, s.Width, height, width)
	}

	if height == s.Height && width == s.Width {
		return s, nil
	}

	out := NewSample(height, width, s.Channels)
	row := width * s.Channels
	for y := 0; y < height; y++ {
		copy(out.Pix[y*row:(y+1)*row], s.Pix[s.Index(y, 0, 0):])
	}

	return out, nil
}
