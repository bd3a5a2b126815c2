package dsp

import (
	"github.com/noriah/pulsecat/frame"
	"github.com/pkg/errors"
)

// Rolling is a fixed size circular buffer of samples. It is created full of
// zero samples and never resized; writes copy into the slot at the cursor.
type Rolling struct {
	slots  []*frame.Sample
	cursor int
}

// NewRolling returns a rolling buffer of size zero samples of the given shape.
func NewRolling(size, height, width, channels int) *Rolling {
	rb := &Rolling{
		slots: make([]*frame.Sample, size),
	}

	for idx := range rb.slots {
		rb.slots[idx] = frame.NewSample(height, width, channels)
	}

	return rb
}

// Len returns the capacity of the buffer.
func (rb *Rolling) Len() int {
	return len(rb.slots)
}

// Cursor returns the slot the next Write goes to.
func (rb *Rolling) Cursor() int {
	return rb.cursor
}

// Write copies s into the slot at the cursor and returns that slot. The
// cursor does not move until Advance is called.
func (rb *Rolling) Write(s *frame.Sample) (int, error) {
	if err := rb.slots[rb.cursor].CopyFrom(s); err != nil {
		return rb.cursor, errors.Wrap(err, "rolling write")
	}

	return rb.cursor, nil
}

// Advance moves the cursor forward one slot, wrapping at the end.
func (rb *Rolling) Advance() {
	rb.cursor = (rb.cursor + 1) % len(rb.slots)
}

// Reset moves the cursor back to slot 0. Stored samples are kept; they get
// overwritten before they can reach a reported estimate.
func (rb *Rolling) Reset() {
	rb.cursor = 0
}

// Samples returns the slots in fixed index order. Slot 0 is always first,
// wherever the cursor is.
func (rb *Rolling) Samples() []*frame.Sample {
	return rb.slots
}

// Ordered fills dst with the slots in write order, oldest first, so the
// newest sample (the last one written) is at the end. dst must have Len()
// entries.
func (rb *Rolling) Ordered(dst []*frame.Sample) []*frame.Sample {
	n := len(rb.slots)
	start := (rb.cursor + 1) % n
	for i := range dst[:n] {
		dst[i] = rb.slots[(start+i)%n]
	}
	return dst[:n]
}
