//go:build linux

package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("ffmpeg-v4l2", V4L2{})
}

// V4L2 is the video4linux2 input for FFmpeg.
type V4L2 struct{}

func (p V4L2) Init() error {
	return nil
}

func (p V4L2) Close() error {
	return nil
}

// Devices returns the /dev/video* nodes.
func (p V4L2) Devices() ([]input.Device, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list video devices")
	}

	sort.Strings(paths)

	devices := make([]input.Device, len(paths))
	for i, path := range paths {
		devices[i] = V4L2Device(path)
	}

	return devices, nil
}

func (p V4L2) DefaultDevice() (input.Device, error) {
	return V4L2Device("/dev/video0"), nil
}

func (p V4L2) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(V4L2Device)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	return NewSession(ctx, dv, cfg)
}

// V4L2Device is a string that is the path to /dev/videoN.
type V4L2Device string

func (d V4L2Device) InputArgs(cfg input.SessionConfig) []string {
	return []string{
		"-f", "v4l2",
		"-framerate", fmt.Sprintf("%g", cfg.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-i", string(d),
	}
}

func (d V4L2Device) String() string {
	return string(d)
}
