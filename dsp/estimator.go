package dsp

import (
	"math/cmplx"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Measure reduces the coefficients of one bin across every pixel and channel
// to a single strength value.
type Measure func(bin []complex128) float64

// RealMean averages the real part of the coefficients.
func RealMean() Measure {
	return func(bin []complex128) float64 {
		sum := 0.0
		for _, c := range bin {
			sum += real(c)
		}
		return sum / float64(len(bin))
	}
}

// MagnitudeMean averages the modulus of the coefficients. Unlike RealMean it
// does not depend on the phase of the pulse within the buffer.
func MagnitudeMean() Measure {
	return func(bin []complex128) float64 {
		sum := 0.0
		for _, c := range bin {
			sum += cmplx.Abs(c)
		}
		return sum / float64(len(bin))
	}
}

var measures = map[string]func() Measure{
	"real":      RealMean,
	"magnitude": MagnitudeMean,
}

// LookupMeasure returns the measure registered under name.
func LookupMeasure(name string) (Measure, error) {
	if fn, ok := measures[name]; ok {
		return fn(), nil
	}

	return nil, errors.Errorf("unknown measure %q (have %v)", name, MeasureNames())
}

// MeasureNames returns the sorted names accepted by LookupMeasure.
func MeasureNames() []string {
	out := make([]string, 0, len(measures))
	for name := range measures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Estimate is one reading of the dominant frequency.
type Estimate struct {
	Bin int     // index of the strongest bin
	Hz  float64 // frequency of Bin
	BPM float64 // Hz * 60

	// Confidence is the share of the strongest bin in the total positive
	// strength of the passband, 0 when the band is empty or silent.
	Confidence float64
	// Valid is false when the strongest bin is outside the passband or has
	// no strength, which happens for static or blank input.
	Valid bool
}

// Estimator finds the dominant frequency of a masked spectrum.
type Estimator struct {
	band    *Passband
	measure Measure
	values  []float64
}

// NewEstimator returns an estimator over the bins of band. A nil measure
// defaults to MagnitudeMean.
func NewEstimator(band *Passband, measure Measure) *Estimator {
	if measure == nil {
		measure = MagnitudeMean()
	}

	return &Estimator{
		band:    band,
		measure: measure,
		values:  make([]float64, band.Len()),
	}
}

// Values returns the per bin strengths computed by the last Estimate.
func (e *Estimator) Values() []float64 {
	return e.values
}

// Estimate measures every bin of spec and picks the strongest. Ties go to the
// lowest bin.
func (e *Estimator) Estimate(spec *Spectrum) (Estimate, error) {
	if spec.Bins != e.band.Len() {
		return Estimate{}, errors.Errorf("spectrum has %d bins, passband %d",
			spec.Bins, e.band.Len())
	}

	for k := range e.values {
		e.values[k] = e.measure(spec.Bin(k))
	}

	// MaxIdx returns the first index holding the maximum.
	peak := floats.MaxIdx(e.values)
	hz := e.band.Frequencies[peak]

	est := Estimate{
		Bin: peak,
		Hz:  hz,
		BPM: 60.0 * hz,
	}

	total := 0.0
	for k, in := range e.band.Mask {
		if in && e.values[k] > 0 {
			total += e.values[k]
		}
	}

	if e.band.Mask[peak] && e.values[peak] > 0 && total > 0 {
		est.Valid = true
		est.Confidence = e.values[peak] / total
	}

	return est, nil
}
