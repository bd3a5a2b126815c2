// Package processor drives a pulse pipeline: it pulls frames from a source,
// runs the temporal bandpass over the detection region, amplifies the pulse
// back into the frame and reports BPM estimates.
package processor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/noriah/pulsecat/detect"
	"github.com/noriah/pulsecat/dsp"
	"github.com/noriah/pulsecat/dsp/window"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output receives every composited frame. The frame is only valid for the
// duration of the call.
type Output interface {
	WriteFrame(*frame.Frame) error
}

// Outputs writes to each output in order and stops at the first error.
type Outputs []Output

func (o Outputs) WriteFrame(f *frame.Frame) error {
	for _, out := range o {
		if err := out.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// State is where a pipeline is in its warm-up.
type State int

const (
	// ColdStart means estimates are being gathered but the history is not
	// full of them yet.
	ColdStart State = iota
	// Warm means the smoothed BPM is backed by a full history.
	Warm
	// NoSubject means the presence gate is closed.
	NoSubject
)

func (s State) String() string {
	switch s {
	case ColdStart:
		return "cold-start"
	case Warm:
		return "warm"
	case NoSubject:
		return "no-subject"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Overlay selects what is drawn on the output frames.
type Overlay int

const (
	// OverlayPulse amplifies the pulse into the region and draws the box
	// and BPM text.
	OverlayPulse Overlay = iota
	// OverlayPresence leaves the pixels alone and draws the detector box,
	// red while nobody is there.
	OverlayPresence
	// OverlayPlain amplifies but draws nothing.
	OverlayPlain
)

var overlayNames = map[string]Overlay{
	"pulse":    OverlayPulse,
	"presence": OverlayPresence,
	"plain":    OverlayPlain,
}

func (o Overlay) String() string {
	for name, v := range overlayNames {
		if v == o {
			return name
		}
	}
	return fmt.Sprintf("Overlay(%d)", int(o))
}

// ParseOverlay parses an overlay name.
func ParseOverlay(name string) (Overlay, error) {
	if o, ok := overlayNames[name]; ok {
		return o, nil
	}
	return OverlayPulse, fmt.Errorf("unknown overlay %q", name)
}

type Config struct {
	Name    string // pipeline name carried on events
	Session string // session id carried on events

	FrameWidth  int             // width of source frames
	FrameHeight int             // height of source frames
	Region      image.Rectangle // detection region within the frame
	Levels      int             // pyramid levels between region and samples

	Alpha        float64 // pulse amplification
	FrameRate    float64 // frames per second of the source
	MinFrequency float64 // passband lower edge in Hz
	MaxFrequency float64 // passband upper edge in Hz

	BufferSize    int // samples in the rolling buffer
	BPMBufferSize int // estimates in the BPM history
	BPMCadence    int // estimate when the cursor is a multiple of this

	Measure  dsp.Measure     // bin strength, nil for magnitude
	Windower window.Function // temporal window, nil for none
	Workers  int             // filter goroutines

	// KeepSlotOrder transforms the buffer in slot order instead of oldest
	// first. Magnitudes are the same either way; phases are not.
	KeepSlotOrder bool
	// Gate resets the buffer whenever the detector loses the subject.
	Gate bool
	// DetectOnly runs the detector and the overlay and nothing else: no
	// buffering, no estimates, no amplification.
	DetectOnly bool

	Overlay  Overlay
	Detector detect.Detector
	Source   input.Source
	Output   Output
	Emitter  event.Emitter
	// Raw receives every frame before it is amplified or annotated.
	Raw Output

	// Clock stamps events, time.Now when nil.
	Clock func() time.Time
}

// Processor is one pipeline. It owns every buffer the signal path uses and is
// not safe for concurrent use; run one per goroutine.
type Processor struct {
	cfg Config

	band      *dsp.Passband
	filter    *dsp.Filter
	estimator *dsp.Estimator
	history   *dsp.History
	rolling   *dsp.Rolling

	ordered []*frame.Sample
	region  *frame.Sample
	slot    *frame.Sample

	bpmTextLocation image.Point

	state     State
	estimates int // since the last reset
	last      dsp.Estimate
	frames    int

	log zerolog.Logger
}

// New checks cfg and allocates the pipeline buffers.
func New(cfg Config) (*Processor, error) {
	switch {
	case cfg.FrameWidth < 1 || cfg.FrameHeight < 1:
		return nil, errors.New("frame size must be positive")
	case cfg.Region.Empty() || !cfg.Region.In(image.Rect(0, 0, cfg.FrameWidth, cfg.FrameHeight)):
		return nil, errors.Errorf("region %v does not fit a %dx%d frame",
			cfg.Region, cfg.FrameWidth, cfg.FrameHeight)
	case cfg.Levels < 1:
		return nil, errors.New("levels must be at least 1")
	case cfg.BufferSize < 2:
		return nil, errors.New("buffer size must be at least 2")
	case cfg.BPMBufferSize < 1:
		return nil, errors.New("bpm buffer size must be at least 1")
	case cfg.BPMCadence < 1:
		return nil, errors.New("bpm cadence must be at least 1")
	}

	band, err := dsp.NewPassband(cfg.FrameRate, cfg.BufferSize, cfg.MinFrequency, cfg.MaxFrequency)
	if err != nil {
		return nil, err
	}

	height, width := frame.ReducedSize(cfg.Region.Dy(), cfg.Region.Dx(), cfg.Levels)

	if cfg.Detector == nil {
		cfg.Detector = detect.Always{}
	}

	if cfg.Emitter == nil {
		cfg.Emitter = event.Discard
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if cfg.Name == "" {
		cfg.Name = "main"
	}

	p := &Processor{
		cfg:  cfg,
		band: band,
		filter: dsp.NewFilter(dsp.FilterConfig{
			Size:     cfg.BufferSize,
			Points:   height * width * frame.Channels,
			Windower: cfg.Windower,
			Workers:  cfg.Workers,
		}),
		estimator: dsp.NewEstimator(band, cfg.Measure),
		history:   dsp.NewHistory(cfg.BPMBufferSize),
		rolling:   dsp.NewRolling(cfg.BufferSize, height, width, frame.Channels),
		ordered:   make([]*frame.Sample, cfg.BufferSize),
		region:    frame.NewSample(cfg.Region.Dy(), cfg.Region.Dx(), frame.Channels),
		slot:      frame.NewSample(height, width, frame.Channels),

		bpmTextLocation: image.Pt(cfg.Region.Dx()/2+5, 30),

		log: log.With().Str("pipeline", cfg.Name).Logger(),
	}

	return p, nil
}

// State returns the warm-up state.
func (p *Processor) State() State {
	return p.state
}

// Cursor returns the rolling buffer slot the next frame goes to.
func (p *Processor) Cursor() int {
	return p.rolling.Cursor()
}

// Smoothed returns the mean of the BPM history.
func (p *Processor) Smoothed() float64 {
	return p.history.Smoothed()
}

// Last returns the most recent estimate.
func (p *Processor) Last() dsp.Estimate {
	return p.last
}

// Frames returns how many frames were processed.
func (p *Processor) Frames() int {
	return p.frames
}

func (p *Processor) setState(s State) {
	if s == p.state {
		return
	}

	p.log.Debug().Stringer("from", p.state).Stringer("to", s).Msg("state change")
	p.state = s
}

// Run pulls frames until the source ends or ctx is done. A frame that fails
// to process stops this pipeline; the failure is logged and Run returns nil.
// A source that ends with an error makes Run return it.
func (p *Processor) Run(ctx context.Context) error {
	p.filter.Start()
	defer p.filter.Stop()

	p.log.Info().Msg("pipeline started")
	defer func() {
		p.log.Info().Int("frames", p.frames).Msg("pipeline stopped")
	}()

	for ctx.Err() == nil {
		f, ok := p.cfg.Source.Next()
		if !ok {
			if err := p.cfg.Source.Err(); err != nil {
				return errors.Wrapf(err, "pipeline %s source", p.cfg.Name)
			}
			return nil
		}

		if err := p.Process(f); err != nil {
			p.log.Error().Err(err).Int("frame", p.frames).Msg("frame failed, stopping pipeline")
			return nil
		}
	}

	return nil
}

// Process runs one frame through the pipeline and writes it, annotated, to
// the output. f is modified in place.
func (p *Processor) Process(f *frame.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	if f.Width != p.cfg.FrameWidth || f.Height != p.cfg.FrameHeight || !f.Valid() {
		return errors.Errorf("frame is %dx%d with %d bytes, want %dx%d",
			f.Width, f.Height, len(f.Pix), p.cfg.FrameWidth, p.cfg.FrameHeight)
	}

	p.frames++

	if p.cfg.Raw != nil {
		if err := p.cfg.Raw.WriteFrame(f); err != nil {
			return errors.Wrap(err, "raw output")
		}
	}

	present, box := true, p.cfg.Region
	if p.cfg.Gate || p.cfg.DetectOnly || p.cfg.Overlay == OverlayPresence {
		present, box = p.cfg.Detector.Detect(f, p.cfg.Region)
	}

	if p.cfg.DetectOnly {
		return p.emitFrame(f, present, box)
	}

	if p.cfg.Gate && !present {
		p.rolling.Reset()
		p.estimates = 0
		p.setState(NoSubject)
		return p.emitFrame(f, present, box)
	}

	if p.state == NoSubject {
		p.setState(ColdStart)
	}

	if err := f.Region(p.cfg.Region, p.region); err != nil {
		return err
	}

	cursor, err := p.rolling.Write(frame.Reduce(p.region, p.cfg.Levels))
	if err != nil {
		return err
	}

	samples, slot := p.rolling.Samples(), cursor
	if !p.cfg.KeepSlotOrder {
		samples, slot = p.rolling.Ordered(p.ordered), p.rolling.Len()-1
	}

	spec, err := p.filter.Analyze(samples)
	if err != nil {
		return err
	}

	if err := spec.ApplyMask(p.band.Mask); err != nil {
		return err
	}

	if cursor%p.cfg.BPMCadence == 0 {
		if err := p.estimate(spec, cursor); err != nil {
			return err
		}
	}

	if p.cfg.Overlay != OverlayPresence {
		if err := p.amplify(f, spec, slot); err != nil {
			return err
		}
	}

	if err := p.emitFrame(f, present, box); err != nil {
		return err
	}

	p.rolling.Advance()

	return nil
}

func (p *Processor) estimate(spec *dsp.Spectrum, cursor int) error {
	est, err := p.estimator.Estimate(spec)
	if err != nil {
		return err
	}

	p.last = est
	p.history.Push(est.BPM)
	p.estimates++

	if p.estimates >= p.history.Len() {
		p.setState(Warm)
	}

	p.log.Debug().
		Int("cursor", cursor).
		Float64("hz", est.Hz).
		Float64("bpm", est.BPM).
		Float64("smoothed", p.history.Smoothed()).
		Bool("valid", est.Valid).
		Msg("estimate")

	// the history still holds zeros until warm
	if p.state != Warm {
		return nil
	}

	p.cfg.Emitter.Emit(event.Event{
		Session:    p.cfg.Session,
		Pipeline:   p.cfg.Name,
		Time:       p.cfg.Clock(),
		BPM:        p.history.Smoothed(),
		Cursor:     cursor,
		Hz:         est.Hz,
		Confidence: est.Confidence,
		Valid:      est.Valid,
		State:      p.state.String(),
	})

	return nil
}

func (p *Processor) amplify(f *frame.Frame, spec *dsp.Spectrum, slot int) error {
	if err := p.filter.SynthesizeAt(spec, slot, p.slot); err != nil {
		return err
	}

	p.slot.Scale(p.cfg.Alpha)

	overlay, err := Reconstruct(p.slot, p.cfg.Levels, p.cfg.Region.Dy(), p.cfg.Region.Dx())
	if err != nil {
		return err
	}

	return Composite(f, p.cfg.Region, overlay)
}

func (p *Processor) emitFrame(f *frame.Frame, present bool, box image.Rectangle) error {
	p.annotate(f, present, box)

	if p.cfg.Output == nil {
		return nil
	}

	return errors.Wrap(p.cfg.Output.WriteFrame(f), "output")
}
