package dsp

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/noriah/pulsecat/dsp/window"
	"github.com/noriah/pulsecat/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate = 15.0
	testSize = 150
)

// oscillating returns size samples of a uniform colour whose value follows
// base + amp*cos(2*pi*hz*t/rate).
func oscillating(size, h, w int, hz, base, amp float64) []*frame.Sample {
	out := make([]*frame.Sample, size)
	for t := range out {
		out[t] = frame.NewSample(h, w, frame.Channels)
		out[t].Fill(base + amp*math.Cos(2*math.Pi*hz*float64(t)/testRate))
	}
	return out
}

func noisy(size, h, w int) []*frame.Sample {
	out := make([]*frame.Sample, size)
	seed := uint32(7)
	for t := range out {
		out[t] = frame.NewSample(h, w, frame.Channels)
		for i := range out[t].Pix {
			seed = seed*1664525 + 1013904223
			out[t].Pix[i] = float64(seed>>24) - 128
		}
	}
	return out
}

func zeros(size, h, w int) []*frame.Sample {
	out := make([]*frame.Sample, size)
	for t := range out {
		out[t] = frame.NewSample(h, w, frame.Channels)
	}
	return out
}

func TestFrequencyTable(t *testing.T) {
	for _, tc := range []struct {
		rate float64
		size int
	}{
		{15, 150}, {30, 64}, {29.97, 300}, {1, 2},
	} {
		freqs := Frequencies(tc.rate, tc.size)
		require.Len(t, freqs, tc.size)

		for k, f := range freqs {
			assert.Equal(t, tc.rate*float64(k)/float64(tc.size), f)
			if k > 0 {
				assert.GreaterOrEqual(t, f, freqs[k-1])
			}
		}
	}
}

func TestPassbandMask(t *testing.T) {
	pb, err := NewPassband(testRate, testSize, 1.0, 2.0)
	require.NoError(t, err)

	assert.Equal(t, 11, pb.Count())
	assert.InDelta(t, 0.1, pb.Resolution(), 1e-12)

	for k, in := range pb.Mask {
		assert.Equal(t, k >= 10 && k <= 20, in, "bin %d (%g Hz)", k, pb.Frequencies[k])
	}
}

func TestPassbandRejectsEmptyBand(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		size     int
		min, max float64
	}{
		{"above nyquist range", 15, 150, 20, 30},
		{"between bins", 15, 10, 1.6, 2.9},
		{"inverted", 15, 150, 2, 1},
		{"zero rate", 0, 150, 1, 2},
		{"tiny buffer", 15, 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPassband(tt.rate, tt.size, tt.min, tt.max)
			assert.Error(t, err)
		})
	}
}

func TestRollingWraparound(t *testing.T) {
	for _, n := range []int{1, 2, 7, 150} {
		rb := NewRolling(n, 2, 2, 3)
		start := rb.Cursor()

		s := frame.NewSample(2, 2, 3)
		for i := 0; i < n; i++ {
			cur, err := rb.Write(s)
			require.NoError(t, err)
			assert.Equal(t, i, cur)
			rb.Advance()
		}

		assert.Equal(t, start, rb.Cursor(), "n=%d", n)
	}
}

func TestRollingResetAndOrder(t *testing.T) {
	rb := NewRolling(4, 1, 1, 1)
	s := frame.NewSample(1, 1, 1)

	for i := 0; i < 6; i++ {
		s.Pix[0] = float64(i)
		_, err := rb.Write(s)
		require.NoError(t, err)
		if i < 5 {
			rb.Advance()
		}
	}

	// slots now hold 4 5 2 3, the last write went to slot 1
	assert.Equal(t, 1, rb.Cursor())

	fixed := []float64{}
	for _, s := range rb.Samples() {
		fixed = append(fixed, s.Pix[0])
	}
	assert.Equal(t, []float64{4, 5, 2, 3}, fixed)

	ordered := []float64{}
	for _, s := range rb.Ordered(make([]*frame.Sample, 4)) {
		ordered = append(ordered, s.Pix[0])
	}
	assert.Equal(t, []float64{2, 3, 4, 5}, ordered)

	rb.Reset()
	assert.Equal(t, 0, rb.Cursor())
	assert.Equal(t, 4.0, rb.Samples()[0].Pix[0], "reset keeps contents")

	_, err := rb.Write(frame.NewSample(2, 1, 1))
	assert.Error(t, err)
}

func TestRoundTripWithoutMask(t *testing.T) {
	in := noisy(testSize, 3, 4)
	out := zeros(testSize, 3, 4)

	f := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len()})

	spec, err := f.Analyze(in)
	require.NoError(t, err)

	all := make([]bool, testSize)
	for k := range all {
		all[k] = true
	}
	require.NoError(t, spec.ApplyMask(all))

	require.NoError(t, f.Synthesize(spec, out))

	for t0 := range in {
		for i, v := range in[t0].Pix {
			assert.InDelta(t, v, out[t0].Pix[i], 1e-9)
		}
	}
}

func TestMaskIdempotent(t *testing.T) {
	pb, err := NewPassband(testRate, testSize, 1.0, 2.0)
	require.NoError(t, err)

	f := NewFilter(FilterConfig{Size: testSize, Points: 2 * 2 * 3})
	spec, err := f.Analyze(noisy(testSize, 2, 2))
	require.NoError(t, err)

	require.NoError(t, spec.ApplyMask(pb.Mask))
	once := append([]complex128(nil), spec.Data...)

	require.NoError(t, spec.ApplyMask(pb.Mask))
	if diff := cmp.Diff(once, spec.Data); diff != "" {
		t.Errorf("second mask changed spectrum (-once +twice):\n%s", diff)
	}

	for k, in := range pb.Mask {
		if in {
			continue
		}
		for _, c := range spec.Bin(k) {
			assert.Zero(t, c)
		}
	}

	assert.Error(t, spec.ApplyMask(make([]bool, 3)))
}

func TestSynthesizeAtMatchesSynthesize(t *testing.T) {
	pb, err := NewPassband(testRate, testSize, 1.0, 2.0)
	require.NoError(t, err)

	in := noisy(testSize, 2, 3)
	f := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len()})

	spec, err := f.Analyze(in)
	require.NoError(t, err)
	require.NoError(t, spec.ApplyMask(pb.Mask))

	full := zeros(testSize, 2, 3)
	require.NoError(t, f.Synthesize(spec, full))

	one := frame.NewSample(2, 3, frame.Channels)
	for _, slot := range []int{0, 1, 74, 149} {
		require.NoError(t, f.SynthesizeAt(spec, slot, one))
		assert.True(t, cmp.Equal(full[slot].Pix, one.Pix, cmpopts.EquateApprox(0, 1e-9)),
			"slot %d", slot)
	}

	assert.Error(t, f.SynthesizeAt(spec, testSize, one))
}

func TestThreadedFilterMatchesInline(t *testing.T) {
	in := noisy(testSize, 5, 7)

	inline := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len()})
	threaded := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len(), Workers: 4})
	threaded.Start()
	defer threaded.Stop()

	a, err := inline.Analyze(in)
	require.NoError(t, err)
	b, err := threaded.Analyze(in)
	require.NoError(t, err)

	assert.True(t, cmp.Equal(a.Data, b.Data, cmpopts.EquateApprox(0, 1e-9)))

	threaded.Stop()
	c, err := threaded.Analyze(in)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(a.Data, c.Data, cmpopts.EquateApprox(0, 1e-9)))
}

func TestAnalyzeRejectsShape(t *testing.T) {
	f := NewFilter(FilterConfig{Size: 4, Points: 3})

	_, err := f.Analyze(zeros(3, 1, 1))
	assert.Error(t, err)

	_, err = f.Analyze(zeros(4, 2, 1))
	assert.Error(t, err)
}

func TestWindowedAnalyze(t *testing.T) {
	in := oscillating(testSize, 1, 1, 1.2, 0, 10)

	f := NewFilter(FilterConfig{Size: testSize, Points: 3, Windower: window.Hann})
	spec, err := f.Analyze(in)
	require.NoError(t, err)

	e := NewEstimator(mustBand(t), MagnitudeMean())
	est, err := e.Estimate(spec)
	require.NoError(t, err)
	assert.Equal(t, 12, est.Bin)
}

func mustBand(t *testing.T) *Passband {
	t.Helper()
	pb, err := NewPassband(testRate, testSize, 1.0, 2.0)
	require.NoError(t, err)
	return pb
}

func estimate(t *testing.T, samples []*frame.Sample, m Measure) Estimate {
	t.Helper()

	pb := mustBand(t)
	f := NewFilter(FilterConfig{Size: testSize, Points: samples[0].Len()})

	spec, err := f.Analyze(samples)
	require.NoError(t, err)
	require.NoError(t, spec.ApplyMask(pb.Mask))

	est, err := NewEstimator(pb, m).Estimate(spec)
	require.NoError(t, err)
	return est
}

func TestEstimatePulse(t *testing.T) {
	for _, name := range MeasureNames() {
		t.Run(name, func(t *testing.T) {
			m, err := LookupMeasure(name)
			require.NoError(t, err)

			est := estimate(t, oscillating(testSize, 2, 2, 1.2, 128, 20), m)

			assert.Equal(t, 12, est.Bin)
			assert.InDelta(t, 1.2, est.Hz, 1e-12)
			assert.InDelta(t, 72.0, est.BPM, 1e-9)
			assert.True(t, est.Valid)
			assert.InDelta(t, 1.0, est.Confidence, 1e-6)
		})
	}

	_, err := LookupMeasure("median")
	assert.Error(t, err)
}

func TestRealMeanFollowsPhase(t *testing.T) {
	// starts at a trough instead of a peak
	in := oscillating(testSize, 2, 2, 1.2, 128, -20)

	assert.Equal(t, 12, estimate(t, in, MagnitudeMean()).Bin)
	assert.NotEqual(t, 12, estimate(t, in, RealMean()).Bin)
}

func TestEstimateAllZero(t *testing.T) {
	est := estimate(t, zeros(testSize, 2, 2), RealMean())

	assert.Equal(t, 0, est.Bin)
	assert.Equal(t, 0.0, est.BPM)
	assert.False(t, est.Valid)
	assert.Zero(t, est.Confidence)
}

func TestEstimateDeterministic(t *testing.T) {
	pb := mustBand(t)
	in := noisy(testSize, 3, 3)

	f := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len()})
	spec, err := f.Analyze(in)
	require.NoError(t, err)
	require.NoError(t, spec.ApplyMask(pb.Mask))

	e := NewEstimator(pb, nil)
	first, err := e.Estimate(spec)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := e.Estimate(spec)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimateTieGoesToFirst(t *testing.T) {
	pb := mustBand(t)
	spec := NewSpectrum(testSize, 1)
	spec.Data[11] = 5
	spec.Data[15] = 5
	require.NoError(t, spec.ApplyMask(pb.Mask))

	est, err := NewEstimator(pb, RealMean()).Estimate(spec)
	require.NoError(t, err)
	assert.Equal(t, 11, est.Bin)
	assert.InDelta(t, 0.5, est.Confidence, 1e-12)
}

func TestHistory(t *testing.T) {
	h := NewHistory(10)
	assert.False(t, h.Warm())
	assert.Equal(t, 0.0, h.Smoothed())

	for i := 0; i < 10; i++ {
		h.Push(72)
	}

	assert.True(t, h.Warm())
	assert.Equal(t, 72.0, h.Smoothed())
	assert.Equal(t, 0.0, h.Spread())
	assert.Equal(t, 0, h.Cursor())
	assert.Equal(t, 10, h.Writes())

	h.Push(82)
	assert.Equal(t, 1, h.Cursor())
	assert.InDelta(t, 73.0, h.Smoothed(), 1e-12)
	assert.Greater(t, h.Spread(), 0.0)
}

func BenchmarkAnalyze(b *testing.B) {
	in := noisy(testSize, 15, 20)
	f := NewFilter(FilterConfig{Size: testSize, Points: in[0].Len()})

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := f.Analyze(in); err != nil {
			b.Fatal(err)
		}
	}
}
