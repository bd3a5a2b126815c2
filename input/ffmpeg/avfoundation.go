//go:build darwin

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("ffmpeg-avfoundation", AVFoundation{})
}

// AVFoundation is the avfoundation input for FFmpeg.
type AVFoundation struct{}

func (p AVFoundation) Init() error {
	return nil
}

func (p AVFoundation) Close() error {
	return nil
}

// Devices returns the video devices ffmpeg lists for avfoundation.
func (p AVFoundation) Devices() ([]input.Device, error) {
	cmd := exec.Command(
		"ffmpeg", "-hide_banner", "-loglevel", "info",
		"-f", "avfoundation", "-list_devices", "true",
		"-i", "",
	)

	o, _ := cmd.CombinedOutput()

	var video bool
	var devices []input.Device

	scanner := bufio.NewScanner(bytes.NewReader(o))
	for scanner.Scan() {
		text := scanner.Text()

		// Trim away the prefix.
		if strings.HasPrefix(text, "[AVFoundation") {
			parts := strings.SplitN(text, "] ", 2)
			if len(parts) == 2 {
				text = parts[1]
			}
		}

		if text == "AVFoundation video devices:" {
			video = true
			continue
		}

		// Devices start with a square bracket; anything else ends the section.
		if !strings.HasPrefix(text, "[") {
			video = false
			continue
		}

		if !video {
			continue
		}

		parts := strings.SplitN(text, " ", 2)
		if len(parts) != 2 {
			continue
		}

		n, err := strconv.Atoi(strings.Trim(parts[0], "[]"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse device index")
		}

		devices = append(devices, AVFoundationDevice{
			Index: n,
			Name:  parts[1],
		})
	}

	if len(devices) == 0 {
		return nil, noDevices(o)
	}

	return devices, nil
}

func (p AVFoundation) DefaultDevice() (input.Device, error) {
	return AVFoundationDevice{0, "default"}, nil
}

func (p AVFoundation) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	dv, ok := cfg.Device.(AVFoundationDevice)
	if !ok {
		return nil, fmt.Errorf("invalid device type %T", cfg.Device)
	}

	return NewSession(ctx, dv, cfg)
}

type AVFoundationDevice struct {
	Index int
	Name  string
}

func (d AVFoundationDevice) InputArgs(cfg input.SessionConfig) []string {
	return []string{
		"-f", "avfoundation",
		"-framerate", fmt.Sprintf("%g", cfg.FrameRate),
		"-i", fmt.Sprintf("%d:none", d.Index),
	}
}

func (d AVFoundationDevice) String() string {
	return fmt.Sprintf("%d:%s", d.Index, d.Name)
}
