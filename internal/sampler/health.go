package sampler

// health counts consecutive actuator failures. It is owned by the loop
// goroutine.
type health struct {
	threshold int
	failures  int
	degraded  bool
}

func newHealth(threshold int) *health {
	if threshold <= 0 {
		threshold = DefaultDegradedAfter
	}
	return &health{threshold: threshold}
}

// failure records a failed actuation and reports whether the session just
// became degraded.
func (h *health) failure() bool {
	h.failures++
	if !h.degraded && h.failures >= h.threshold {
		h.degraded = true
		return true
	}
	return false
}

// success records a successful actuation and reports whether the session
// just recovered.
func (h *health) success() bool {
	h.failures = 0
	if h.degraded {
		h.degraded = false
		return true
	}
	return false
}
