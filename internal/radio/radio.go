// Package radio reports the power state of the host's Bluetooth adapter.
package radio

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// State is the adapter power state.
type State string

const (
	Unknown    State = "unknown"
	On         State = "on"
	Off        State = "off"
	TurningOn  State = "turning_on"
	TurningOff State = "turning_off"
)

// Disabled reports whether the radio is off or on its way off.
func (s State) Disabled() bool {
	return s == Off || s == TurningOff
}

// Listener is notified when the adapter power state changes.
type Listener interface {
	OnRadioStateChanged(State)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(State)

func (f ListenerFunc) OnRadioStateChanged(s State) {
	f(s)
}

// parsePowerState maps BlueZ's Adapter1.PowerState strings.
func parsePowerState(v string) State {
	switch v {
	case "on":
		return On
	case "off", "off-blocked":
		return Off
	case "off-enabling":
		return TurningOn
	case "on-disabling":
		return TurningOff
	default:
		return Unknown
	}
}

// StateFromProperties derives a state from an Adapter1 property set.
// PowerState is preferred over Powered since only it reports transitions.
// The second result is false when neither property is present.
func StateFromProperties(props map[string]dbus.Variant) (State, bool) {
	if v, ok := props["PowerState"]; ok {
		if s, ok := v.Value().(string); ok {
			if st := parsePowerState(strings.ToLower(s)); st != Unknown {
				return st, true
			}
		}
	}

	if v, ok := props["Powered"]; ok {
		if powered, ok := v.Value().(bool); ok {
			if powered {
				return On, true
			}
			return Off, true
		}
	}

	return Unknown, false
}
