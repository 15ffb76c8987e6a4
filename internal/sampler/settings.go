package sampler

import (
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
)

const (
	DefaultInterval      = 2 * time.Second
	DefaultThreshold     = -4.0
	DefaultWindow        = 5
	DefaultDegradedAfter = 3
)

// Settings are the plain parameters a session runs with.
type Settings struct {
	Interval  time.Duration
	Threshold float64
	Window    int
	// ReadTimeout is applied by the peer connector, not by the loop.
	ReadTimeout time.Duration
	// DegradedAfter is the number of consecutive actuator failures after
	// which the session reports itself degraded.
	DegradedAfter int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Interval:      DefaultInterval,
		Threshold:     DefaultThreshold,
		Window:        DefaultWindow,
		ReadTimeout:   10 * time.Second,
		DegradedAfter: DefaultDegradedAfter,
	}
}

// Validate checks settings that would otherwise fault at run time.
func (s Settings) Validate() error {
	if s.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, s.Interval)
	}
	if s.Window < 1 {
		return errFactory.WithData(errors.ErrInvalidCapacity, s.Window)
	}
	if s.ReadTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, s.ReadTimeout)
	}
	return nil
}
