// Package stdinput reads rawvideo bgr24 frames from standard input, for
// piping in any decoder:
//
//	ffmpeg -i clip.mp4 -vf scale=320:240 -f rawvideo -pix_fmt bgr24 - | pulsecat -b stdin
package stdinput

import (
	"context"
	"io"
	"os"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
)

func init() {
	input.RegisterBackend("stdin", StdinBackend{})
}

type StdinBackend struct{}

func (b StdinBackend) Init() error {
	return nil
}

func (b StdinBackend) Close() error {
	return nil
}

func (b StdinBackend) Devices() ([]input.Device, error) {
	return []input.Device{StdInputDevice{}}, nil
}

func (b StdinBackend) DefaultDevice() (input.Device, error) {
	return StdInputDevice{}, nil
}

func (b StdinBackend) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	return NewSession(ctx, os.Stdin, cfg), nil
}

type StdInputDevice struct{}

func (d StdInputDevice) String() string {
	return "stdin"
}

// Session reads whole frames from a reader.
type Session struct {
	ctx   context.Context
	r     io.Reader
	frame *frame.Frame
	err   error
	done  bool
}

// NewSession returns a source reading cfg sized frames from r.
func NewSession(ctx context.Context, r io.Reader, cfg input.SessionConfig) *Session {
	return &Session{
		ctx:   ctx,
		r:     r,
		frame: frame.New(cfg.Width, cfg.Height),
	}
}

func (s *Session) Next() (*frame.Frame, bool) {
	if s.done {
		return nil, false
	}

	if s.ctx.Err() != nil {
		s.done = true
		return nil, false
	}

	if _, err := io.ReadFull(s.r, s.frame.Pix); err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = errors.Wrap(err, "failed to read frame")
		}
		return nil, false
	}

	return s.frame, true
}

func (s *Session) Err() error {
	return s.err
}

func (s *Session) Close() error {
	s.done = true
	return nil
}
