// Package decision turns smoothed signal strength into lock and unlock
// actuation.
package decision

import (
	"context"
	"sync"

	"codeberg.org/mutker/proxlock/internal/errors"
)

// Engine compares each smoothed value with a single threshold. Hysteresis
// comes from the averaging window upstream, which only yields a value once a
// full window of samples has accumulated.
type Engine struct {
	threshold float64
	actuator  Actuator

	mu    sync.RWMutex
	state LockState
}

// New creates an engine in the Locked state.
func New(threshold float64, actuator Actuator) *Engine {
	return &Engine{
		threshold: threshold,
		actuator:  actuator,
		state:     Locked,
	}
}

// State returns the current lock state. Safe to call from any goroutine.
func (e *Engine) State() LockState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Threshold returns the configured cutoff in dBm.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// ShouldLock reports whether a smoothed value lies beyond the threshold.
// Lower values mean a weaker signal and a more distant peer.
func (e *Engine) ShouldLock(smoothed float64) bool {
	return smoothed < e.threshold
}

// Evaluate feeds one smoothed value. When the verdict differs from the
// current state the engine transitions and calls the actuator exactly once.
// The new state is kept even when actuation fails; the failure is returned
// wrapped as ErrActuatorFailure and the actuator is not called again until
// the verdict flips.
func (e *Engine) Evaluate(ctx context.Context, smoothed float64) (Transition, error) {
	target := StateOf(e.ShouldLock(smoothed))

	e.mu.Lock()
	from := e.state
	if target == from {
		e.mu.Unlock()
		return Transition{From: from, To: from}, nil
	}
	e.state = target
	e.mu.Unlock()

	t := Transition{From: from, To: target, Changed: true}
	if err := e.actuator.SetLocked(ctx, target.IsLocked()); err != nil {
		return t, errors.Wrap(errors.ErrActuatorFailure, err)
	}

	return t, nil
}
