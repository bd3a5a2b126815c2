package dsp

import (
	"gonum.org/v1/gonum/stat"
)

// History is a fixed size circular buffer of BPM readings. It starts full of
// zeros; the smoothed value is the mean of every slot, so it only means
// something once Writes reaches Len.
type History struct {
	values []float64
	cursor int
	writes int
}

// NewHistory returns a zeroed history of size slots.
func NewHistory(size int) *History {
	return &History{
		values: make([]float64, size),
	}
}

// Push stores bpm at the cursor and moves the cursor.
func (h *History) Push(bpm float64) {
	h.values[h.cursor] = bpm
	h.cursor = (h.cursor + 1) % len(h.values)
	h.writes++
}

// Smoothed returns the mean of all slots.
func (h *History) Smoothed() float64 {
	return stat.Mean(h.values, nil)
}

// Spread returns the standard deviation of all slots.
func (h *History) Spread() float64 {
	if len(h.values) < 2 {
		return 0
	}
	return stat.StdDev(h.values, nil)
}

// Warm reports whether every slot holds a reading.
func (h *History) Warm() bool {
	return h.writes >= len(h.values)
}

// Len returns the number of slots.
func (h *History) Len() int {
	return len(h.values)
}

// Cursor returns the slot the next Push goes to.
func (h *History) Cursor() int {
	return h.cursor
}

// Writes returns the number of Push calls so far.
func (h *History) Writes() int {
	return h.writes
}

// Values returns the slots in index order.
func (h *History) Values() []float64 {
	return h.values
}
