// Package window implements the fixed-capacity moving average used to smooth
// raw RSSI samples before they reach the lock decision.
package window

import (
	"codeberg.org/mutker/proxlock/internal/errors"
)

var (
	// ErrNotReady is returned by Mean until the window holds capacity samples.
	ErrNotReady = errors.New().New(errors.ErrNotReady)
	// ErrInvalidCapacity is returned by New for a capacity below one.
	ErrInvalidCapacity = errors.New().New(errors.ErrInvalidCapacity)
)

// Window is a FIFO of the most recent N samples. It is not safe for
// concurrent use; a sampling session owns exactly one.
type Window struct {
	buf   []float64
	pos   int
	count int
}

// New creates a window holding the last capacity samples.
func New(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity.WithData(capacity)
	}

	return &Window{
		buf: make([]float64, capacity),
	}, nil
}

// Push appends a sample, evicting the oldest once the window is full.
func (w *Window) Push(val float64) {
	w.buf[w.pos] = val
	w.pos = (w.pos + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Mean returns the arithmetic mean of the held samples, or ErrNotReady
// while fewer than capacity samples have been pushed.
func (w *Window) Mean() (float64, error) {
	if w.count < len(w.buf) {
		return 0, ErrNotReady.WithData(w.progress())
	}

	var sum float64
	for _, v := range w.buf {
		sum += v
	}

	return sum / float64(len(w.buf)), nil
}

// Ready reports whether Mean will succeed.
func (w *Window) Ready() bool {
	return w.count == len(w.buf)
}

// Len returns the number of held samples.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Values returns the held samples oldest first.
func (w *Window) Values() []float64 {
	if w.count == 0 {
		return nil
	}

	result := make([]float64, w.count)
	if w.count < len(w.buf) {
		copy(result, w.buf[:w.count])
	} else {
		n := copy(result, w.buf[w.pos:])
		copy(result[n:], w.buf[:w.pos])
	}

	return result
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.pos = 0
	w.count = 0
}

type fill struct {
	Have, Want int
}

func (w *Window) progress() fill {
	return fill{Have: w.count, Want: len(w.buf)}
}
