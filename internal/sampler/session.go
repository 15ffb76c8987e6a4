// Package sampler runs the periodic read, smooth and decide loop for one
// sampling session.
package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/peer"
	"codeberg.org/mutker/proxlock/internal/window"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var errFactory = errors.New()

const unavailableLogInterval = 30 * time.Second

// Session is one run of the sampling loop. The window, the engine and the
// health counter are touched only by the loop goroutine.
type Session struct {
	id       string
	settings Settings
	link     peer.Link
	window   *window.Window
	engine   *decision.Engine
	health   *health
	pub      events.Publisher
	log      logger.Logger

	status      statusCell
	unavailable rate.Sometimes
	done        chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher sets where the session sends its events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.pub = p }
}

// WithLogger sets the session's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New creates a session with a fresh window and an engine in the Locked
// state. The link is owned by the caller, who must close it only after the
// session has stopped.
func New(settings Settings, link peer.Link, actuator decision.Actuator, opts ...Option) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	w, err := window.New(settings.Window)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:          uuid.NewString(),
		settings:    settings,
		link:        link,
		window:      w,
		engine:      decision.New(settings.Threshold, actuator),
		health:      newHealth(settings.DegradedAfter),
		pub:         events.Discard,
		log:         logger.Nop(),
		unavailable: rate.Sometimes{Interval: unavailableLogInterval},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session_id", s.id)

	s.status.st = Status{
		SessionID: s.id,
		StartedAt: time.Now(),
		Interval:  settings.Interval,
		Threshold: settings.Threshold,
		Window:    settings.Window,
		State:     s.engine.State(),
	}

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Settings() Settings {
	return s.settings
}

// State returns the engine's current lock state.
func (s *Session) State() decision.LockState {
	return s.engine.State()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	return s.status.get()
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives ticks until ctx is cancelled. Cancellation is checked before
// every tick and interrupts the sleep between ticks. Run may be called once.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	s.log.Debug().
		Dur("interval", s.settings.Interval).
		Float64("threshold", s.settings.Threshold).
		Int("window", s.settings.Window).
		Msg("Sampling loop started")

	defer func() {
		s.log.Debug().Msg("Sampling loop stopped")
	}()

	timer := time.NewTimer(s.settings.Interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		s.tick(ctx)

		timer.Reset(s.settings.Interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	ready := s.link.Ready()
	s.status.update(func(st *Status) { st.PeerReady = ready })

	if !ready {
		s.unavailable.Do(func() {
			s.log.Warn().
				Str("error_code", string(errors.ErrPeerUnavailable)).
				Msg("Peer not connected, skipping sample")
		})
		s.publish(events.Event{Type: events.PeerUnavailable})
		return
	}

	s.link.RequestSample()

	rssi, ok := s.link.LastSample()
	if !ok {
		return
	}

	s.window.Push(float64(rssi))
	s.status.update(func(st *Status) {
		st.LastRSSI = &rssi
		st.Samples = s.window.Len()
	})
	s.publish(events.Event{Type: events.SampleRead, RSSI: rssi})

	mean, err := s.window.Mean()
	if err != nil {
		s.log.Debug().
			Int("rssi", rssi).
			Int("samples", s.window.Len()).
			Msg("Warming up")
		return
	}

	s.status.update(func(st *Status) { st.Smoothed = &mean })
	s.publish(events.Event{Type: events.SampleSmoothed, Smoothed: mean})

	s.log.Debug().
		Int("rssi", rssi).
		Float64("smoothed", mean).
		Msg("Sample smoothed")

	t, err := s.engine.Evaluate(ctx, mean)
	if t.Changed {
		s.status.update(func(st *Status) { st.State = t.To })
		s.log.Info().
			Str("state", t.To.String()).
			Float64("smoothed", mean).
			Msg("Lock state changed")
		s.publish(events.Event{Type: events.LockStateChanged, State: t.To, Smoothed: mean})
	}

	if err != nil {
		s.actuatorFailed(t, err)
		return
	}
	if t.Changed && s.health.success() {
		s.status.update(func(st *Status) {
			st.Degraded = false
			st.Failures = 0
		})
		s.log.Info().Msg("Actuator recovered")
		s.publish(events.Event{Type: events.Recovered})
	} else if t.Changed {
		s.status.update(func(st *Status) { st.Failures = 0 })
	}
}

func (s *Session) actuatorFailed(t decision.Transition, err error) {
	becameDegraded := s.health.failure()
	failures := s.health.failures

	s.status.update(func(st *Status) {
		st.Failures = failures
		st.Degraded = s.health.degraded
	})

	s.log.Error().
		Err(err).
		Str("error_code", string(errors.ErrActuatorFailure)).
		Str("state", t.To.String()).
		Int("failures", failures).
		Msg("Failed to apply lock state")
	s.publish(events.Event{Type: events.ActuatorFailed, State: t.To, Error: err.Error(), Failures: failures})

	if becameDegraded {
		s.log.Warn().Int("failures", failures).Msg("Actuator degraded")
		s.publish(events.Event{Type: events.Degraded, Failures: failures})
	}
}

func (s *Session) publish(ev events.Event) {
	ev.Time = time.Now()
	ev.SessionID = s.id
	s.pub.Publish(ev)
}
