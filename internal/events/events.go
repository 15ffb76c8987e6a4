// Package events carries observations from the proximity pipeline to
// presentation and observability layers.
package events

import (
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
)

// Type identifies an event.
type Type string

const (
	SessionStarted   Type = "session_started"
	SessionStopped   Type = "session_stopped"
	SampleRead       Type = "sample_read"
	SampleSmoothed   Type = "sample_smoothed"
	LockStateChanged Type = "lock_state_changed"
	ActuatorFailed   Type = "actuator_failed"
	Degraded         Type = "degraded"
	Recovered        Type = "recovered"
	PeerUnavailable  Type = "peer_unavailable"
	RadioChanged     Type = "radio_changed"
)

// Stop reasons carried by SessionStopped.
const (
	ReasonUser     = "user"
	ReasonRadioOff = "radio_off"
	ReasonShutdown = "shutdown"
	ReasonRestart  = "restart"
)

// Event is a single observation. Only the fields relevant to Type are set.
type Event struct {
	Type      Type               `json:"type"`
	Time      time.Time          `json:"time"`
	SessionID string             `json:"session_id,omitempty"`
	RSSI      int                `json:"rssi,omitempty"`
	Smoothed  float64            `json:"smoothed,omitempty"`
	State     decision.LockState `json:"-"`
	Reason    string             `json:"reason,omitempty"`
	Error     string             `json:"error,omitempty"`
	Failures  int                `json:"failures,omitempty"`
	Radio     string             `json:"radio,omitempty"`
}

// Listener receives events. Implementations must not block for long; the
// Bus gives each listener its own queue.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}

// Publisher is the emitting side of the Bus.
type Publisher interface {
	Publish(Event)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
