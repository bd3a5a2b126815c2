// Package dsp provides the temporal side of pulse detection
//
// Samples of the detection region are kept in a rolling buffer. The buffer is
// transformed one pixel at a time along the time axis, masked to the pulse
// band and transformed back. The strongest masked bin gives the estimate.
//
// Bin strength defaults to the mean magnitude of the coefficients. The mean
// of the real part, RealMean, is available too, but it follows the phase of
// the pulse at the start of the buffer: a pulse that starts near a trough
// has a negative real part and loses to an empty bin.
//
// Some notes:
//
// https://people.csail.mit.edu/mrub/evm/
// https://stackoverflow.com/questions/3694918/how-to-extract-frequency-associated-with-fft-values-in-python
package dsp

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/noriah/pulsecat/dsp/window"
	"github.com/noriah/pulsecat/fft"
	"github.com/noriah/pulsecat/frame"
	"github.com/pkg/errors"
)

// FilterConfig configures a Filter.
type FilterConfig struct {
	Size     int             // number of time slots (rolling buffer length)
	Points   int             // values per sample (height * width * channels)
	Windower window.Function // applied to each series before the forward transform
	Workers  int             // goroutines sharing a transform, 1 or less runs inline
}

// Filter runs the temporal transforms of the bandpass. Every value of a sample
// is its own time series; they are transformed independently.
//
// With more than one worker the series are split into contiguous ranges and
// handed to long running goroutines. Each call still returns only when all of
// them are done, so a Filter never holds work across frames.
type Filter struct {
	size   int
	points int
	wndwr  window.Function

	spectrum *Spectrum

	workers []*worker
	kicks   []chan job
	wg      sync.WaitGroup
	running bool
}

type job func(w *worker)

type worker struct {
	lo, hi int // series range [lo, hi)
	plan   *fft.Plan
	series []float64
	twid   []complex128
}

// NewFilter returns a filter for the given buffer geometry.
func NewFilter(cfg FilterConfig) *Filter {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Points {
		workers = cfg.Points
	}

	f := &Filter{
		size:     cfg.Size,
		points:   cfg.Points,
		wndwr:    cfg.Windower,
		spectrum: NewSpectrum(cfg.Size, cfg.Points),
		workers:  make([]*worker, workers),
	}

	if f.wndwr == nil {
		f.wndwr = window.Rectangle
	}

	chunk := (cfg.Points + workers - 1) / workers
	for idx := range f.workers {
		lo := idx * chunk
		hi := lo + chunk
		if hi > cfg.Points {
			hi = cfg.Points
		}

		f.workers[idx] = &worker{
			lo:     lo,
			hi:     hi,
			plan:   fft.NewPlan(cfg.Size),
			series: make([]float64, cfg.Size),
		}
	}

	return f
}

// Start launches the worker goroutines. It does nothing for a single worker.
func (f *Filter) Start() {
	if f.running || len(f.workers) < 2 {
		return
	}

	f.kicks = make([]chan job, len(f.workers))
	for idx, w := range f.workers {
		f.kicks[idx] = make(chan job, 1)
		go f.work(w, f.kicks[idx])
	}

	f.running = true
}

// Stop ends the worker goroutines. The filter keeps working inline after.
func (f *Filter) Stop() {
	if !f.running {
		return
	}

	for _, kick := range f.kicks {
		close(kick)
	}

	f.kicks = nil
	f.running = false
}

func (f *Filter) work(w *worker, kick <-chan job) {
	for fn := range kick {
		fn(w)
		f.wg.Done()
	}
}

// run applies fn to every worker and waits for all of them.
func (f *Filter) run(fn job) {
	if !f.running {
		for _, w := range f.workers {
			fn(w)
		}
		return
	}

	f.wg.Add(len(f.workers))

	for _, kick := range f.kicks {
		kick <- fn
	}

	f.wg.Wait()
}

func (f *Filter) check(samples []*frame.Sample) error {
	if len(samples) != f.size {
		return errors.Errorf("filter expects %d samples, got %d", f.size, len(samples))
	}

	for t, s := range samples {
		if s.Len() != f.points {
			return errors.Errorf("sample %d has %d values, want %d", t, s.Len(), f.points)
		}
	}

	return nil
}

// Analyze transforms every series of samples into the frequency domain. The
// returned spectrum is owned by the filter and overwritten by the next call.
func (f *Filter) Analyze(samples []*frame.Sample) (*Spectrum, error) {
	if err := f.check(samples); err != nil {
		return nil, err
	}

	spec := f.spectrum
	spec.unmask()

	f.run(func(w *worker) {
		for p := w.lo; p < w.hi; p++ {
			for t, s := range samples {
				w.series[t] = s.Pix[p]
			}

			f.wndwr(w.series)

			for t, v := range w.series {
				w.plan.Input[t] = complex(v, 0)
			}

			w.plan.Forward()

			for k, c := range w.plan.Output {
				spec.Data[k*f.points+p] = c
			}
		}
	})

	return spec, nil
}

// Synthesize inverts spec into dst, keeping only the real part of every
// value. The imaginary part is round trip residue.
func (f *Filter) Synthesize(spec *Spectrum, dst []*frame.Sample) error {
	if spec.Bins != f.size || spec.Points != f.points {
		return errors.New("spectrum does not match filter")
	}

	if err := f.check(dst); err != nil {
		return err
	}

	f.run(func(w *worker) {
		for p := w.lo; p < w.hi; p++ {
			for k := range w.plan.Output {
				w.plan.Output[k] = spec.Data[k*f.points+p]
			}

			w.plan.Inverse()

			for t, s := range dst {
				s.Pix[p] = real(w.plan.Input[t])
			}
		}
	})

	return nil
}

// SynthesizeAt inverts spec for the single time slot only, writing it into
// dst. Only the active bins are summed, which after masking is a handful
// instead of the whole buffer.
func (f *Filter) SynthesizeAt(spec *Spectrum, slot int, dst *frame.Sample) error {
	if spec.Bins != f.size || spec.Points != f.points {
		return errors.New("spectrum does not match filter")
	}

	if slot < 0 || slot >= f.size {
		return errors.Errorf("slot %d outside [0, %d)", slot, f.size)
	}

	if dst.Len() != f.points {
		return errors.Errorf("sample has %d values, want %d", dst.Len(), f.points)
	}

	active := spec.Active()
	n := float64(f.size)

	f.run(func(w *worker) {
		w.twid = w.twid[:0]
		for _, k := range active {
			angle := 2 * math.Pi * float64(k*slot%f.size) / n
			w.twid = append(w.twid, cmplx.Rect(1/n, angle))
		}

		for p := w.lo; p < w.hi; p++ {
			sum := 0.0
			for i, k := range active {
				c := spec.Data[k*f.points+p]
				tw := w.twid[i]
				sum += real(c)*real(tw) - imag(c)*imag(tw)
			}
			dst.Pix[p] = sum
		}
	})

	return nil
}
