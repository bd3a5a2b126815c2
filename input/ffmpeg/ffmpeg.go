// Package ffmpeg provides capture backends that run ffmpeg and read rawvideo
// frames from its stdout.
package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"github.com/noriah/pulsecat/input"
	"github.com/noriah/pulsecat/input/common/execread"
)

type FFmpegBackend interface {
	InputArgs(cfg input.SessionConfig) []string
}

// Args returns the full ffmpeg command line for b.
func Args(b FFmpegBackend, cfg input.SessionConfig) []string {
	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	args = append(args, b.InputArgs(cfg)...)
	args = append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"-r", fmt.Sprintf("%g", cfg.FrameRate),
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-",
	)
	return args
}

func NewSession(ctx context.Context, b FFmpegBackend, cfg input.SessionConfig) (*execread.Session, error) {
	s := execread.NewSession(Args(b, cfg), cfg)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// noDevices formats the ffmpeg device listing output into an error.
func noDevices(o []byte) error {
	// This is completely for visual.
	lines := strings.Split(string(o), "\n")
	for i, line := range lines {
		lines[i] = "\t" + line
	}
	output := strings.Join(lines, "\n")

	return fmt.Errorf("no devices found; ffmpeg output:\n%s", output)
}
