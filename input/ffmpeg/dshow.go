//go:build windows

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("ffmpeg-dshow", DShow{})
}

// DShow is the DirectShow input for FFmpeg on Windows.
type DShow struct{}

func (p DShow) Init() error {
	return nil
}

func (p DShow) Close() error {
	return nil
}

// Devices returns a list of dshow video devices.
func (p DShow) Devices() ([]input.Device, error) {
	cmd := exec.Command(
		"ffmpeg", "-hide_banner", "-loglevel", "info",
		"-list_devices", "true", "-f", "dshow",
		"-i", "dummy",
	)

	o, _ := cmd.CombinedOutput()

	var devices []input.Device

	var scanner = bufio.NewScanner(bytes.NewReader(o))

	for scanner.Scan() {
		text := scanner.Text()

		// Trim away the prefix.
		if strings.HasPrefix(text, "[dshow") {
			parts := strings.SplitN(text, "] ", 2)
			if len(parts) == 2 {
				text = parts[1]
			}
		}

		if !strings.HasPrefix(text, "\"") {
			continue
		}

		// "Name" (video)
		parts := strings.SplitN(text[1:], "\" (", 2)
		if len(parts) != 2 {
			continue
		}

		if !strings.HasPrefix(parts[1], "video") {
			continue
		}

		devices = append(devices, DShowDevice{
			Name: parts[0],
		})
	}

	if len(devices) == 0 {
		return nil, noDevices(o)
	}

	return devices, nil
}

func (p DShow) DefaultDevice() (input.Device, error) {
	devices, err := p.Devices()
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		return nil, errors.New("no dshow video device")
	}

	return devices[0], nil
}

func (p DShow) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(DShowDevice)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	return NewSession(ctx, dv, cfg)
}

type DShowDevice struct {
	Name string
}

func (d DShowDevice) InputArgs(cfg input.SessionConfig) []string {
	return []string{
		"-f", "dshow",
		"-framerate", fmt.Sprintf("%g", cfg.FrameRate),
		"-i", "video=" + d.Name,
	}
}

func (d DShowDevice) String() string {
	return d.Name
}
