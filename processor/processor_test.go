package processor

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/noriah/pulsecat/detect"
	"github.com/noriah/pulsecat/dsp"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input/synth"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 64
	testHeight = 48
)

func testConfig() Config {
	return Config{
		Name:          "test",
		FrameWidth:    testWidth,
		FrameHeight:   testHeight,
		Region:        frame.Centered(testWidth, testHeight, 32, 24),
		Levels:        3,
		Alpha:         170,
		FrameRate:     15,
		MinFrequency:  1.0,
		MaxFrequency:  2.0,
		BufferSize:    150,
		BPMBufferSize: 10,
		BPMCadence:    15,
	}
}

func pulse(bpm float64, frames int) *synth.Source {
	return synth.NewSource(context.Background(), synth.Config{
		Width:     testWidth,
		Height:    testHeight,
		FrameRate: 15,
		BPM:       bpm,
		Amplitude: 20,
		Frames:    frames,
	})
}

type blank struct {
	left int
}

func (b *blank) Next() (*frame.Frame, bool) {
	if b.left == 0 {
		return nil, false
	}
	b.left--
	return frame.New(testWidth, testHeight), true
}

func (b *blank) Err() error   { return nil }
func (b *blank) Close() error { return nil }

type frames struct {
	count int
	last  *frame.Frame
}

func (o *frames) WriteFrame(f *frame.Frame) error {
	o.count++
	o.last = f.Clone()
	return nil
}

func TestPulseEndToEnd(t *testing.T) {
	for _, tc := range []struct {
		name string
		keep bool
	}{
		{"ordered", false},
		{"slot order", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var events []event.Event

			cfg := testConfig()
			cfg.KeepSlotOrder = tc.keep
			cfg.Source = pulse(72, 300)
			cfg.Emitter = event.EmitterFunc(func(ev event.Event) { events = append(events, ev) })

			out := &frames{}
			cfg.Output = out

			p, err := New(cfg)
			require.NoError(t, err)
			require.NoError(t, p.Run(context.Background()))

			assert.Equal(t, 300, out.count)
			assert.Equal(t, Warm, p.State())
			assert.Equal(t, 12, p.Last().Bin)
			assert.InDelta(t, 72, p.Last().BPM, 1e-9)
			assert.True(t, p.Last().Valid)
			assert.InDelta(t, 72, p.Smoothed(), 1e-9)

			// one estimate every 15 frames, sent from the tenth on
			require.Len(t, events, 11)
			assert.Equal(t, "warm", events[0].State)
			last := events[len(events)-1]
			assert.Equal(t, "test", last.Pipeline)
			assert.Equal(t, "warm", last.State)
			assert.InDelta(t, 72, last.BPM, 1e-9)
			assert.Equal(t, 135, last.Cursor)
		})
	}
}

func TestWarmUp(t *testing.T) {
	cfg := testConfig()
	cfg.Source = pulse(72, 0)

	p, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 135; i++ {
		f, ok := cfg.Source.Next()
		require.True(t, ok)
		require.NoError(t, p.Process(f))
	}

	// estimates at cursors 0, 15, ..., 120
	assert.Equal(t, ColdStart, p.State())

	f, _ := cfg.Source.Next()
	require.NoError(t, p.Process(f))
	assert.Equal(t, Warm, p.State())
}

func TestNoEventsBeforeWarm(t *testing.T) {
	var events []event.Event

	cfg := testConfig()
	cfg.Source = pulse(72, 136)
	cfg.Emitter = event.EmitterFunc(func(ev event.Event) { events = append(events, ev) })

	p, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 135; i++ {
		f, ok := cfg.Source.Next()
		require.True(t, ok)
		require.NoError(t, p.Process(f))
	}
	assert.Equal(t, ColdStart, p.State())
	assert.Empty(t, events)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, events, 1)
	assert.Equal(t, "warm", events[0].State)
	assert.Equal(t, 135, events[0].Cursor)
}

func TestAllZeroInput(t *testing.T) {
	var events []event.Event

	cfg := testConfig()
	cfg.Source = &blank{left: 151}
	cfg.Emitter = event.EmitterFunc(func(ev event.Event) { events = append(events, ev) })

	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, Warm, p.State())
	assert.Equal(t, 0.0, p.Smoothed())

	est := p.Last()
	assert.Equal(t, 0, est.Bin)
	assert.Zero(t, est.BPM)
	assert.False(t, est.Valid)
	assert.Zero(t, est.Confidence)

	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Zero(t, ev.BPM)
		assert.False(t, ev.Valid)
	}
}

func TestGateResetsCursor(t *testing.T) {
	present := true
	var events int

	cfg := testConfig()
	cfg.Gate = true
	cfg.Source = pulse(72, 0)
	cfg.Detector = detect.Func(func(_ *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
		return present, r
	})
	cfg.Emitter = event.EmitterFunc(func(event.Event) { events++ })

	p, err := New(cfg)
	require.NoError(t, err)

	step := func() {
		f, ok := cfg.Source.Next()
		require.True(t, ok)
		require.NoError(t, p.Process(f))
	}

	for i := 0; i < 136; i++ {
		step()
	}
	assert.Equal(t, Warm, p.State())
	assert.Equal(t, 136, p.Cursor())
	assert.Equal(t, 1, events)

	smoothed := p.Smoothed()
	require.NotZero(t, smoothed)

	present = false
	for i := 0; i < 5; i++ {
		step()
	}
	assert.Equal(t, NoSubject, p.State())
	assert.Equal(t, 0, p.Cursor())
	assert.Equal(t, 1, events, "no events without a subject")
	assert.Equal(t, smoothed, p.Smoothed(), "history is kept while nobody is there")

	present = true
	step()
	assert.Equal(t, ColdStart, p.State())
	assert.Equal(t, 1, p.Cursor(), "first frame after a reset goes to slot 0")
	assert.Equal(t, 1, events, "warm-up is earned again")

	for i := 0; i < 135; i++ {
		step()
	}
	assert.Equal(t, Warm, p.State())
	assert.Equal(t, 2, events)
}

func TestZeroAlphaLeavesFrame(t *testing.T) {
	cfg := testConfig()
	cfg.Alpha = 0
	cfg.Overlay = OverlayPlain

	p, err := New(cfg)
	require.NoError(t, err)

	src := pulse(72, 40)
	for {
		f, ok := src.Next()
		if !ok {
			break
		}

		want := f.Clone()
		require.NoError(t, p.Process(f))
		require.Equal(t, want.Pix, f.Pix)
	}
}

func TestAnnotation(t *testing.T) {
	cfg := testConfig()
	cfg.FrameWidth, cfg.FrameHeight = 320, 240
	cfg.Region = frame.Centered(320, 240, 160, 120)

	p, err := New(cfg)
	require.NoError(t, err)

	f := frame.New(320, 240)
	require.NoError(t, p.Process(f))

	at := func(x, y int) []uint8 {
		off := f.PixOffset(x, y)
		return f.Pix[off : off+3]
	}

	// BGR green on the box corner
	assert.Equal(t, []uint8{0, 255, 0}, at(80, 60))
	assert.Equal(t, []uint8{0, 0, 0}, at(160, 120))
}

func TestDetectOnly(t *testing.T) {
	present := true
	var events int

	cfg := testConfig()
	cfg.DetectOnly = true
	cfg.Overlay = OverlayPresence
	cfg.Detector = detect.Func(func(_ *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
		return present, r
	})
	cfg.Emitter = event.EmitterFunc(func(event.Event) { events++ })

	out := &frames{}
	cfg.Output = out

	p, err := New(cfg)
	require.NoError(t, err)

	src := pulse(72, 0)
	at := func(f *frame.Frame, x, y int) []uint8 {
		off := f.PixOffset(x, y)
		return f.Pix[off : off+3]
	}

	for i := 0; i < 30; i++ {
		f, _ := src.Next()
		want := f.Clone()
		require.NoError(t, p.Process(f))

		// nothing is amplified inside the region
		assert.Equal(t, at(want, 32, 24), at(f, 32, 24))
	}

	assert.Equal(t, []uint8{0, 255, 0}, at(out.last, 16, 12))

	present = false
	f, _ := src.Next()
	require.NoError(t, p.Process(f))
	assert.Equal(t, []uint8{0, 0, 255}, at(out.last, 16, 12), "red box without a subject")

	assert.Equal(t, 31, out.count)
	assert.Zero(t, p.Cursor())
	assert.Zero(t, events)
	assert.Equal(t, dsp.Estimate{}, p.Last())
}

func TestRawOutput(t *testing.T) {
	cfg := testConfig()
	cfg.Source = pulse(72, 20)

	raw, out := &frames{}, &frames{}
	cfg.Raw, cfg.Output = raw, out

	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 20, raw.count)
	assert.Equal(t, 20, out.count)

	at := func(f *frame.Frame, x, y int) []uint8 {
		off := f.PixOffset(x, y)
		return f.Pix[off : off+3]
	}

	// the synth frame is uniform until the box is drawn on it
	assert.Equal(t, at(raw.last, 0, 0), at(raw.last, 16, 12))
	assert.Equal(t, []uint8{0, 255, 0}, at(out.last, 16, 12))
}

func TestStopLogCountsFrames(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	cfg := testConfig()
	cfg.Source = pulse(72, 12)

	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Contains(t, buf.String(), `"frames":12,"message":"pipeline stopped"`)
}

func TestFrameFailureStopsPipeline(t *testing.T) {
	cfg := testConfig()
	cfg.FrameWidth = testWidth * 2
	cfg.Source = pulse(72, 10)

	out := &frames{}
	cfg.Output = out

	p, err := New(cfg)
	require.NoError(t, err)

	assert.NoError(t, p.Run(context.Background()))
	assert.Zero(t, out.count)
}

func TestNewRejectsBadConfig(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{"region outside", func(c *Config) { c.Region = image.Rect(0, 0, 100, 10) }},
		{"no levels", func(c *Config) { c.Levels = 0 }},
		{"empty band", func(c *Config) { c.MinFrequency, c.MaxFrequency = 1.01, 1.09 }},
		{"cadence", func(c *Config) { c.BPMCadence = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.modify(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestComposite(t *testing.T) {
	f := frame.New(4, 2)
	for i := range f.Pix {
		f.Pix[i] = 100
	}

	overlay := frame.NewSample(1, 2, 3)
	copy(overlay.Pix, []float64{-200, 0.5, 1.4, 200, -0.5, 0})

	r := image.Rect(1, 1, 3, 2)
	require.NoError(t, Composite(f, r, overlay))

	off := f.PixOffset(1, 1)
	assert.Equal(t, []uint8{0, 101, 101, 255, 100, 100}, f.Pix[off:off+6])
	assert.Equal(t, uint8(100), f.Pix[0])

	assert.Error(t, Composite(f, image.Rect(0, 0, 1, 1), overlay))
}

func TestReconstruct(t *testing.T) {
	s := frame.NewSample(15, 20, 3)
	s.Fill(2)

	out, err := Reconstruct(s, 3, 120, 160)
	require.NoError(t, err)
	assert.Equal(t, 120, out.Height)
	assert.Equal(t, 160, out.Width)
	assert.InDelta(t, 2, out.At(60, 80, 1), 1e-9)

	_, err = Reconstruct(s, 3, 130, 160)
	assert.Error(t, err)
}
