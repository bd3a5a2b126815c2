//go:build !fftw

package fft

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTW is false if pulsecat is not built with the fftw tag. It will use gonum
// instead.
const FFTW = false

// Plan holds a gonum FFT plan.
type Plan struct {
	Input  []complex128
	Output []complex128
	fft    *fourier.CmplxFFT
}

func (p *Plan) init() {
	p.fft = fourier.NewCmplxFFT(len(p.Input))
}

// Forward transforms Input into Output.
func (p *Plan) Forward() {
	p.fft.Coefficients(p.Output, p.Input)
}

// Inverse transforms Output back into Input, scaled by 1/n.
func (p *Plan) Inverse() {
	p.fft.Sequence(p.Input, p.Output)
	p.normalize()
}
