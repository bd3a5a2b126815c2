//go:build gocv

// Package gocv captures frames through OpenCV. It is only built with the gocv
// tag since it needs the OpenCV libraries at link time.
package gocv

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	input.RegisterBackend("gocv", Backend{})
}

// maxIndex is how many camera indexes Devices tries.
const maxIndex = 4

type Backend struct{}

func (b Backend) Init() error {
	return nil
}

func (b Backend) Close() error {
	return nil
}

func (b Backend) Devices() ([]input.Device, error) {
	var devices []input.Device

	for i := 0; i < maxIndex; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}

		if vc.IsOpened() {
			devices = append(devices, Device(strconv.Itoa(i)))
		}

		vc.Close()
	}

	return devices, nil
}

func (b Backend) DefaultDevice() (input.Device, error) {
	return Device("0"), nil
}

// ParseDevice accepts a camera index, a file path or a stream URL.
func (b Backend) ParseDevice(name string) (input.Device, error) {
	return Device(name), nil
}

func (b Backend) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(Device)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	var target interface{} = string(dv)
	if idx, err := strconv.Atoi(string(dv)); err == nil {
		target = idx
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture %q", dv)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, cfg.FrameRate)

	return &Session{
		ctx:     ctx,
		cap:     vc,
		mat:     gocv.NewMat(),
		resized: gocv.NewMat(),
		frame:   frame.New(cfg.Width, cfg.Height),
	}, nil
}

type Device string

func (d Device) String() string {
	return string(d)
}

// Session reads from an open VideoCapture and resizes every frame to the
// session size.
type Session struct {
	ctx     context.Context
	cap     *gocv.VideoCapture
	mat     gocv.Mat
	resized gocv.Mat
	frame   *frame.Frame
	err     error
}

func (s *Session) Next() (*frame.Frame, bool) {
	if s.ctx.Err() != nil || s.err != nil {
		return nil, false
	}

	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, false
	}

	size := image.Pt(s.frame.Width, s.frame.Height)
	gocv.Resize(s.mat, &s.resized, size, 0, 0, gocv.InterpolationLinear)

	if s.resized.Channels() != frame.Channels {
		s.err = errors.Errorf("capture produced %d channels", s.resized.Channels())
		return nil, false
	}

	copy(s.frame.Pix, s.resized.ToBytes())

	return s.frame, true
}

func (s *Session) Err() error {
	return s.err
}

func (s *Session) Close() error {
	s.mat.Close()
	s.resized.Close()
	return s.cap.Close()
}
