package dsp

import (
	"github.com/pkg/errors"
)

// bandTolerance absorbs rounding in rate*k/size so that band edges that land
// on a bin are kept.
const bandTolerance = 1e-9

// Passband is the frequency table of a rolling buffer and the mask of bins
// that lie inside [Min, Max].
type Passband struct {
	Rate float64 // frames per second
	Min  float64 // lowest kept frequency, Hz
	Max  float64 // highest kept frequency, Hz

	Frequencies []float64 // Frequencies[k] = Rate * k / len
	Mask        []bool    // Mask[k] is true when Frequencies[k] is in band
}

// Frequencies returns the frequency of every bin of a size point transform of
// a series sampled at rate.
func Frequencies(rate float64, size int) []float64 {
	out := make([]float64, size)
	for k := range out {
		out[k] = rate * float64(k) / float64(size)
	}
	return out
}

// NewPassband builds the frequency table and mask. It fails when no bin
// falls inside the band, since such a filter silences every signal.
func NewPassband(rate float64, size int, min, max float64) (*Passband, error) {
	switch {
	case rate <= 0:
		return nil, errors.Errorf("frame rate must be positive, got %g", rate)
	case size < 2:
		return nil, errors.Errorf("buffer size too small (2+ required), got %d", size)
	case min < 0 || max <= min:
		return nil, errors.Errorf("invalid band [%g, %g]", min, max)
	}

	pb := &Passband{
		Rate:        rate,
		Min:         min,
		Max:         max,
		Frequencies: Frequencies(rate, size),
		Mask:        make([]bool, size),
	}

	count := 0
	for k, f := range pb.Frequencies {
		if f >= min-bandTolerance && f <= max+bandTolerance {
			pb.Mask[k] = true
			count++
		}
	}

	if count == 0 {
		return nil, errors.Errorf(
			"band [%g, %g] Hz holds no bins (resolution %g Hz, range 0-%g Hz)",
			min, max, rate/float64(size), pb.Frequencies[size-1])
	}

	return pb, nil
}

// Len returns the number of bins.
func (pb *Passband) Len() int {
	return len(pb.Frequencies)
}

// Count returns the number of bins inside the band.
func (pb *Passband) Count() int {
	count := 0
	for _, in := range pb.Mask {
		if in {
			count++
		}
	}
	return count
}

// Resolution is the spacing between bins in Hz.
func (pb *Passband) Resolution() float64 {
	return pb.Rate / float64(len(pb.Frequencies))
}
