// Package fft provides generic abstractions around fourier transformers.
//
// A Plan owns one time-domain buffer and one frequency-domain buffer of the
// same length. Forward reads Input and fills Output, Inverse reads Output and
// fills Input. Both directions work on full complex spectra so every bin in
// [0, n) is addressable.
package fft

// InitPlan creates a plan for series of length n and stores it in pointer.
func InitPlan(pointer **Plan, n int) {
	(*pointer) = &Plan{
		Input:  make([]complex128, n),
		Output: make([]complex128, n),
	}

	(*pointer).init()
}

// NewPlan returns a new plan for series of length n.
func NewPlan(n int) *Plan {
	var p *Plan
	InitPlan(&p, n)
	return p
}

// Len returns the series length of the plan.
func (p *Plan) Len() int {
	return len(p.Input)
}

func (p *Plan) normalize() {
	scale := complex(1.0/float64(len(p.Input)), 0)
	for i := range p.Input {
		p.Input[i] *= scale
	}
}
