package decision

import (
	"context"

	"codeberg.org/mutker/proxlock/internal/errors"
)

// Actuator performs the platform lock or unlock.
type Actuator interface {
	SetLocked(ctx context.Context, locked bool) error
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, locked bool) error

func (f ActuatorFunc) SetLocked(ctx context.Context, locked bool) error {
	return f(ctx, locked)
}

// LockState is the engine's view of the host lock.
type LockState int

const (
	// Locked is the zero value so a fresh engine assumes the host is secured.
	Locked LockState = iota
	Unlocked
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LockState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "locked":
		*s = Locked
	case "unlocked":
		*s = Unlocked
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, string(text))
	}
	return nil
}

// IsLocked reports the state as the boolean passed to the actuator.
func (s LockState) IsLocked() bool {
	return s == Locked
}

// StateOf maps an actuator boolean back to a LockState.
func StateOf(locked bool) LockState {
	if locked {
		return Locked
	}
	return Unlocked
}

// Transition describes the outcome of a single evaluation.
type Transition struct {
	From    LockState
	To      LockState
	Changed bool
}
