package ui

import "strings"

// history is a fixed-size ring of recent raw samples.
type history struct {
	buf   []int
	pos   int
	count int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{buf: make([]int, capacity)}
}

func (h *history) push(v int) {
	h.buf[h.pos] = v
	h.pos = (h.pos + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

func (h *history) reset() {
	h.pos, h.count = 0, 0
}

// values returns the stored samples oldest first.
func (h *history) values() []int {
	if h.count == 0 {
		return nil
	}
	out := make([]int, h.count)
	if h.count < len(h.buf) {
		copy(out, h.buf[:h.count])
		return out
	}
	n := copy(out, h.buf[h.pos:])
	copy(out[n:], h.buf[:h.pos])
	return out
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their own minimum and maximum.
func sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		idx := top / 2
		if hi > lo {
			idx = (v - lo) * top / (hi - lo)
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
