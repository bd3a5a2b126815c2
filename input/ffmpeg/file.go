package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("ffmpeg-file", File{})
}

// File decodes a video file (or any URL ffmpeg understands) in real time.
type File struct{}

func (p File) Init() error {
	return nil
}

func (p File) Close() error {
	return nil
}

// Devices returns nothing; any path is accepted.
func (p File) Devices() ([]input.Device, error) {
	return nil, nil
}

func (p File) DefaultDevice() (input.Device, error) {
	return nil, errors.New("the file backend needs a path as the device")
}

// ParseDevice accepts a path or URL.
func (p File) ParseDevice(name string) (input.Device, error) {
	if strings.Contains(name, "://") {
		return FileDevice(name), nil
	}

	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("video file %q does not exist", name)
		}
		return nil, errors.Wrap(err, "failed to stat video file")
	}

	return FileDevice(name), nil
}

func (p File) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(FileDevice)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	return NewSession(ctx, dv, cfg)
}

// FileDevice is the path of a video file.
type FileDevice string

func (d FileDevice) InputArgs(cfg input.SessionConfig) []string {
	// -re paces decoding at the native rate, like a camera would.
	return []string{"-re", "-i", string(d)}
}

func (d FileDevice) String() string {
	return string(d)
}
