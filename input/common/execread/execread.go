// Package execread provides a shared struct that wraps around cmd.
package execread

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is a source that reads raw bgr24 frames from the stdout of a Cmd.
type Session struct {
	// OnStart is called when the session starts. Nil by default.
	OnStart func(ctx context.Context, cmd *exec.Cmd) error

	// prevents cmd.Stderr from poiting to os.Stderr. false by default.
	DisconnectedStderr bool

	argv []string
	cfg  input.SessionConfig

	cmd    *exec.Cmd
	stdout io.ReadCloser
	frame  *frame.Frame
	err    error
}

// NewSession creates a new execread session. It never returns an error.
func NewSession(argv []string, cfg input.SessionConfig) *Session {
	if len(argv) < 1 {
		panic("argv has no arg0")
	}

	return &Session{
		argv:  argv,
		cfg:   cfg,
		frame: frame.New(cfg.Width, cfg.Height),
	}
}

// Start launches the command. The command is killed when ctx is done.
func (s *Session) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)

	if !s.DisconnectedStderr {
		cmd.Stderr = os.Stderr
	}

	o, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to get stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start "+s.argv[0])
	}

	if s.OnStart != nil {
		if err := s.OnStart(ctx, cmd); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
	}

	log.Debug().Strs("argv", s.argv).Msg("capture command started")

	s.cmd = cmd
	s.stdout = o

	return nil
}

// Next reads one whole frame. A short read at the end of the stream is
// treated as the end of the stream.
func (s *Session) Next() (*frame.Frame, bool) {
	if s.stdout == nil || s.err != nil {
		return nil, false
	}

	if _, err := io.ReadFull(s.stdout, s.frame.Pix); err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = errors.Wrap(err, "failed to read frame")
		}
		s.stdout = nil
		return nil, false
	}

	return s.frame, true
}

// Err returns the read error that ended the stream, if any.
func (s *Session) Err() error {
	return s.err
}

// Close stops the command and waits for it.
func (s *Session) Close() error {
	if s.cmd == nil {
		return nil
	}

	if s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Kill()
	}

	// the exit status of a killed process is not interesting.
	_ = s.cmd.Wait()
	s.cmd = nil

	return nil
}
