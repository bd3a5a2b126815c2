// Package synth generates frames of a uniform skin tone whose brightness
// follows a pulse. It needs no hardware and is the fallback backend.
package synth

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
	"github.com/noriah/pulsecat/input/common/timer"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("synth", Backend{})
}

// Base is the BGR tone the pulse is added on.
var Base = [frame.Channels]float64{110, 140, 190}

type Backend struct{}

func (b Backend) Init() error {
	return nil
}

func (b Backend) Close() error {
	return nil
}

func (b Backend) Devices() ([]input.Device, error) {
	return []input.Device{Device{BPM: 60}, Device{BPM: 72}, Device{BPM: 90}}, nil
}

func (b Backend) DefaultDevice() (input.Device, error) {
	return Device{BPM: 72}, nil
}

// ParseDevice accepts any pulse rate, with an optional "bpm" suffix.
func (b Backend) ParseDevice(name string) (input.Device, error) {
	bpm, err := strconv.ParseFloat(strings.TrimSuffix(name, "bpm"), 64)
	if err != nil || bpm <= 0 {
		return nil, errors.Errorf("synth device must be a pulse rate like 72, got %q", name)
	}

	return Device{BPM: bpm}, nil
}

func (b Backend) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(Device)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	return NewSource(ctx, Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		BPM:       dv.BPM,
		Amplitude: 2,
		Paced:     true,
	}), nil
}

// Device is a generated pulse rate.
type Device struct {
	BPM float64
}

func (d Device) String() string {
	return fmt.Sprintf("%gbpm", d.BPM)
}

// Config configures a generated stream.
type Config struct {
	Width     int
	Height    int
	FrameRate float64
	BPM       float64 // pulse rate
	Amplitude float64 // peak change of every channel
	Frames    int     // stop after this many frames, 0 runs forever
	Paced     bool    // produce frames in real time
}

// Source produces the frames.
type Source struct {
	ctx   context.Context
	cfg   Config
	pacer *timer.Pacer
	frame *frame.Frame
	count int
}

// NewSource returns a generator. Frame t has every channel set to
// Base + Amplitude*cos(2*pi*BPM/60*t/FrameRate).
func NewSource(ctx context.Context, cfg Config) *Source {
	s := &Source{
		ctx:   ctx,
		cfg:   cfg,
		frame: frame.New(cfg.Width, cfg.Height),
	}

	if cfg.Paced {
		s.pacer = timer.NewPacer(cfg.FrameRate)
	}

	return s
}

func (s *Source) Next() (*frame.Frame, bool) {
	if s.cfg.Frames > 0 && s.count >= s.cfg.Frames {
		return nil, false
	}

	if s.ctx.Err() != nil {
		return nil, false
	}

	if s.pacer != nil && !s.pacer.Wait(s.ctx) {
		return nil, false
	}

	hz := s.cfg.BPM / 60.0
	wave := s.cfg.Amplitude * math.Cos(2*math.Pi*hz*float64(s.count)/s.cfg.FrameRate)

	var px [frame.Channels]uint8
	for c := range px {
		px[c] = uint8(math.Round(math.Max(0, math.Min(255, Base[c]+wave))))
	}

	for i := 0; i < len(s.frame.Pix); i += frame.Channels {
		copy(s.frame.Pix[i:i+frame.Channels], px[:])
	}

	s.count++

	return s.frame, true
}

func (s *Source) Err() error {
	return nil
}

func (s *Source) Close() error {
	if s.pacer != nil {
		s.pacer.Stop()
	}
	return nil
}
