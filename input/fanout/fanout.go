// Package fanout shares one capture source between several pipelines.
package fanout

import (
	"context"
	"sync"

	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/input"
)

// Tee reads a single source and hands every frame to each of its branches.
// Hand-off blocks until the branch takes the frame, so the slowest branch
// sets the pace and no frame is ever dropped.
type Tee struct {
	src      input.Source
	branches []*Branch

	mu  sync.Mutex
	err error
}

// New returns a tee over src with n branches. Call Run to start reading.
func New(src input.Source, n int) *Tee {
	t := &Tee{src: src, branches: make([]*Branch, n)}

	for i := range t.branches {
		t.branches[i] = &Branch{
			tee:    t,
			frames: make(chan *frame.Frame),
			done:   make(chan struct{}),
		}
	}

	return t
}

// Branches returns one source per consumer.
func (t *Tee) Branches() []input.Source {
	out := make([]input.Source, len(t.branches))
	for i, b := range t.branches {
		out[i] = b
	}
	return out
}

// Run pumps frames until the source ends, every branch is closed or ctx is
// done. It closes the underlying source on return.
func (t *Tee) Run(ctx context.Context) error {
	defer t.src.Close()
	defer func() {
		for _, b := range t.branches {
			close(b.frames)
		}
	}()

	for {
		f, ok := t.src.Next()
		if !ok {
			err := t.src.Err()
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			return err
		}

		open := 0
		for _, b := range t.branches {
			if b.send(ctx, f) {
				open++
			}
		}

		if ctx.Err() != nil || open == 0 {
			return nil
		}
	}
}

func (t *Tee) sourceErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Branch is the consumer side of a Tee.
type Branch struct {
	tee    *Tee
	frames chan *frame.Frame
	done   chan struct{}
	once   sync.Once

	// two buffers so the frame the consumer holds is never written
	bufs [2]*frame.Frame
	next int
}

func (b *Branch) send(ctx context.Context, f *frame.Frame) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	buf := b.bufs[b.next]
	if buf == nil || buf.Width != f.Width || buf.Height != f.Height {
		buf = f.Clone()
		b.bufs[b.next] = buf
	} else {
		copy(buf.Pix, f.Pix)
	}
	b.next ^= 1

	select {
	case b.frames <- buf:
		return true
	case <-b.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (b *Branch) Next() (*frame.Frame, bool) {
	select {
	case f, ok := <-b.frames:
		return f, ok
	case <-b.done:
		return nil, false
	}
}

func (b *Branch) Err() error {
	return b.tee.sourceErr()
}

// Close detaches the branch. The tee stops once all branches are closed.
func (b *Branch) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}
