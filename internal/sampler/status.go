package sampler

import (
	"sync"
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
)

// Status is a point-in-time view of a session for presentation layers.
type Status struct {
	SessionID   string             `json:"session_id"`
	StartedAt   time.Time          `json:"started_at"`
	Interval    time.Duration      `json:"-"`
	Threshold   float64            `json:"threshold"`
	Window      int                `json:"window"`
	Samples     int                `json:"samples"`
	LastRSSI    *int               `json:"last_rssi"`
	Smoothed    *float64           `json:"smoothed"`
	State       decision.LockState `json:"lock_state"`
	PeerReady   bool               `json:"peer_ready"`
	Degraded    bool               `json:"degraded"`
	Failures    int                `json:"actuator_failures"`
	LastUpdated time.Time          `json:"last_updated"`
}

// statusCell holds the copy of loop state that other goroutines may read.
type statusCell struct {
	mu sync.RWMutex
	st Status
}

func (c *statusCell) update(fn func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.st)
	c.st.LastUpdated = time.Now()
}

func (c *statusCell) get() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.st
	if st.LastRSSI != nil {
		v := *st.LastRSSI
		st.LastRSSI = &v
	}
	if st.Smoothed != nil {
		v := *st.Smoothed
		st.Smoothed = &v
	}
	return st
}
