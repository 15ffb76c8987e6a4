package events

import "encoding/json"

type alias Event

// wireEvent shadows the sample fields so a legitimate 0 dBm reading is not
// dropped by omitempty on events that carry samples.
type wireEvent struct {
	alias
	RSSI      *int     `json:"rssi,omitempty"`
	Smoothed  *float64 `json:"smoothed,omitempty"`
	LockState string   `json:"lock_state,omitempty"`
}

// MarshalJSON renders the lock state by name, and only for events that
// carry one.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{alias: alias(e)}
	switch e.Type {
	case SampleRead:
		w.RSSI = &e.RSSI
	case SampleSmoothed:
		w.Smoothed = &e.Smoothed
	case LockStateChanged, SessionStarted:
		w.LockState = e.State.String()
	}
	return json.Marshal(w)
}
