// Package ffmpeg records pipeline frames to a video file by piping rawvideo
// into ffmpeg.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/noriah/pulsecat/frame"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config describes the recording.
type Config struct {
	Path      string  // output file, the container follows the extension
	Width     int     // frame width
	Height    int     // frame height
	FrameRate float64 // frames per second
	Codec     string  // ffmpeg video encoder, empty lets ffmpeg pick
}

// Args returns the ffmpeg command line for cfg.
func Args(cfg Config) []string {
	args := []string{
		"ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", fmt.Sprintf("%g", cfg.FrameRate),
		"-i", "-",
	}

	if cfg.Codec != "" {
		args = append(args, "-c:v", cfg.Codec)
	}

	return append(args, cfg.Path)
}

// Writer is a processor output feeding an ffmpeg process.
type Writer struct {
	cfg   Config
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// Start runs ffmpeg. Cancelling ctx kills it; call Close to finish the file
// cleanly.
func Start(ctx context.Context, cfg Config) (*Writer, error) {
	argv := Args(cfg)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdin pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}

	log.Debug().Strs("argv", argv).Msg("recording")

	return &Writer{cfg: cfg, cmd: cmd, stdin: stdin}, nil
}

// NewWriter writes raw bgr24 frames of the given size to w. It is what Start
// uses around the ffmpeg stdin, without the process.
func NewWriter(w io.WriteCloser, width, height int) *Writer {
	return &Writer{cfg: Config{Width: width, Height: height}, stdin: w}
}

func (w *Writer) WriteFrame(f *frame.Frame) error {
	if f.Width != w.cfg.Width || f.Height != w.cfg.Height {
		return errors.Errorf("recording is %dx%d, frame is %dx%d",
			w.cfg.Width, w.cfg.Height, f.Width, f.Height)
	}

	_, err := w.stdin.Write(f.Pix)
	return errors.Wrap(err, "failed to write frame")
}

// Close ends the input and waits for ffmpeg to finish the file.
func (w *Writer) Close() error {
	err := w.stdin.Close()

	if w.cmd != nil {
		if werr := w.cmd.Wait(); werr != nil {
			return errors.Wrap(werr, "ffmpeg exited")
		}
	}

	return err
}
