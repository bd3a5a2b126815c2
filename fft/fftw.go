//go:build fftw

package fft

// The only bindings included are the ones pulsecat needs: a pair of complex
// 1d plans, one per direction, over the buffers owned by the Plan.

// #cgo pkg-config: fftw3
// #include <fftw3.h>
import "C"

import (
	"runtime"
	"unsafe"
)

// FFTW is true if pulsecat is built with the fftw tag.
const FFTW = true

// Plan holds a pair of FFTW C plans.
type Plan struct {
	Input  []complex128
	Output []complex128

	forward  C.fftw_plan
	backward C.fftw_plan
}

func (p *Plan) init() {
	n := C.int(len(p.Input))
	in := (*C.fftw_complex)(unsafe.Pointer(&p.Input[0]))
	out := (*C.fftw_complex)(unsafe.Pointer(&p.Output[0]))

	// FFTW_ESTIMATE leaves the buffers alone while planning.
	p.forward = C.fftw_plan_dft_1d(n, in, out, C.FFTW_FORWARD, C.FFTW_ESTIMATE)
	p.backward = C.fftw_plan_dft_1d(n, out, in, C.FFTW_BACKWARD, C.FFTW_ESTIMATE)

	// Rely on the runtime to free memory.
	runtime.SetFinalizer(p, (*Plan).destroy)
}

// Forward transforms Input into Output.
func (p *Plan) Forward() {
	C.fftw_execute(p.forward)
}

// Inverse transforms Output back into Input, scaled by 1/n.
func (p *Plan) Inverse() {
	C.fftw_execute(p.backward)
	p.normalize()
}

// destroy releases resources
func (p *Plan) destroy() {
	C.fftw_destroy_plan(p.forward)
	C.fftw_destroy_plan(p.backward)
}
