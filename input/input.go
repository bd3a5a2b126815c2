// Package input provides frame sources and the registry of capture backends.
package input

import (
	"context"

	"github.com/noriah/pulsecat/frame"
)

// Device is a capture device a backend can open.
type Device interface {
	String() string
}

// SessionConfig describes the frames a backend should produce.
type SessionConfig struct {
	Device    Device
	Width     int     // frame width in pixels
	Height    int     // frame height in pixels
	FrameRate float64 // frames per second
}

// FrameSize is the number of bytes in one bgr24 frame.
func (cfg SessionConfig) FrameSize() int {
	return cfg.Width * cfg.Height * frame.Channels
}

// Source is a pull based stream of frames.
//
// Next blocks until a frame is available. It returns ok=false once the stream
// has ended; Err then tells whether it ended cleanly (nil) or not. The frame
// returned by Next may be reused by the source on the following call.
type Source interface {
	Next() (*frame.Frame, bool)
	Err() error
	Close() error
}

// Starter opens a source bound to ctx. Cancelling ctx ends the stream.
type Starter interface {
	Start(ctx context.Context, cfg SessionConfig) (Source, error)
}
