package dsp

import "github.com/pkg/errors"

// Spectrum is the temporal transform of a whole rolling buffer: one complex
// coefficient per bin for every value (pixel and channel) of a sample.
//
// Data is bin-major, Data[k*Points+p] is bin k of value p, so Bin(k) is
// contiguous.
type Spectrum struct {
	Bins   int
	Points int
	Data   []complex128

	// active lists the bins that may be non-zero once masked is set.
	active []int
	masked bool
}

// NewSpectrum returns a zeroed spectrum.
func NewSpectrum(bins, points int) *Spectrum {
	return &Spectrum{
		Bins:   bins,
		Points: points,
		Data:   make([]complex128, bins*points),
	}
}

// Bin returns the coefficients of bin k across all values.
func (s *Spectrum) Bin(k int) []complex128 {
	return s.Data[k*s.Points : (k+1)*s.Points]
}

// ApplyMask zeroes every bin whose mask entry is false. Applying the same mask
// again changes nothing.
func (s *Spectrum) ApplyMask(mask []bool) error {
	if len(mask) != s.Bins {
		return errors.Errorf("mask has %d entries, spectrum has %d bins", len(mask), s.Bins)
	}

	active := s.active[:0]
	for k, keep := range mask {
		if keep {
			active = append(active, k)
			continue
		}

		bin := s.Bin(k)
		for i := range bin {
			bin[i] = 0
		}
	}

	s.active = active
	s.masked = true

	return nil
}

// Active returns the bins that may hold non-zero coefficients.
func (s *Spectrum) Active() []int {
	if s.masked {
		return s.active
	}

	all := make([]int, s.Bins)
	for k := range all {
		all[k] = k
	}
	return all
}

func (s *Spectrum) unmask() {
	s.masked = false
}
