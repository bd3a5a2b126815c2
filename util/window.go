// Package util holds small helpers shared by the outputs.
package util

import (
	"math"
)

// MovingWindow keeps running statistics over the last Cap values.
//
// Values live in a ring. head is the oldest value; a new value goes in at
// head+length, overwriting the oldest once the ring is full. Drop discards
// from the oldest end.
type MovingWindow struct {
	ring []float64

	head   int
	length int

	sum    float64
	sumSq  float64
	mean   float64
	stddev float64
}

// NewMovingWindow returns a new moving window.
func NewMovingWindow(size int) *MovingWindow {
	if size < 1 {
		size = 1
	}

	return &MovingWindow{ring: make([]float64, size)}
}

func (mw *MovingWindow) calcFinal() (float64, float64) {
	if mw.length > 0 {
		mw.mean = mw.sum / float64(mw.length)
	} else {
		mw.mean = 0
	}

	if mw.length > 1 {
		n := float64(mw.length)
		variance := (mw.sumSq - n*mw.mean*mw.mean) / (n - 1)
		mw.stddev = math.Sqrt(math.Abs(variance))
	} else {
		mw.stddev = 0
	}

	return mw.mean, mw.stddev
}

// Update adds a value, evicting the oldest when full.
func (mw *MovingWindow) Update(value float64) (float64, float64) {
	if mw.length < len(mw.ring) {
		mw.ring[(mw.head+mw.length)%len(mw.ring)] = value
		mw.length++
	} else {
		old := mw.ring[mw.head]
		mw.sum -= old
		mw.sumSq -= old * old

		mw.ring[mw.head] = value
		mw.head = (mw.head + 1) % len(mw.ring)
	}

	mw.sum += value
	mw.sumSq += value * value

	return mw.calcFinal()
}

// Drop removes count of the oldest values.
func (mw *MovingWindow) Drop(count int) (float64, float64) {
	for count > 0 && mw.length > 0 {
		old := mw.ring[mw.head]
		mw.sum -= old
		mw.sumSq -= old * old

		mw.head = (mw.head + 1) % len(mw.ring)
		mw.length--
		count--
	}

	// clear rounding residue
	if mw.length == 0 {
		mw.sum, mw.sumSq = 0, 0
	}

	return mw.calcFinal()
}

// Len returns how many items in the window
func (mw *MovingWindow) Len() int {
	return mw.length
}

// Cap returns max size of window
func (mw *MovingWindow) Cap() int {
	return len(mw.ring)
}

func (mw *MovingWindow) Mean() float64 {
	return mw.mean
}

func (mw *MovingWindow) StdDev() float64 {
	return mw.stddev
}

// Stats returns the mean and standard deviation.
func (mw *MovingWindow) Stats() (float64, float64) {
	return mw.mean, mw.stddev
}
