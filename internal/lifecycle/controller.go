// Package lifecycle starts and stops sampling sessions and makes sure at
// most one runs at a time.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/peer"
	"codeberg.org/mutker/proxlock/internal/radio"
	"codeberg.org/mutker/proxlock/internal/sampler"
)

var errFactory = errors.New()

var (
	ErrSessionAlreadyRunning = errFactory.New(errors.ErrSessionAlreadyRunning)
	ErrSessionNotRunning     = errFactory.New(errors.ErrSessionNotRunning)
	ErrRadioUnavailable      = errFactory.New(errors.ErrRadioUnavailable)
)

type running struct {
	session *sampler.Session
	link    peer.Link
	cancel  context.CancelFunc
}

// Controller owns the active session, its cancellation and its peer link.
type Controller struct {
	connector peer.Connector
	actuator  decision.Actuator
	pub       events.Publisher
	log       logger.Logger

	mu       sync.Mutex
	active   *running
	settings sampler.Settings
	radio    radio.State
}

// Option configures a Controller.
type Option func(*Controller)

func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) { c.pub = p }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithSettings sets the settings used by Resume and Toggle until the next
// Start or Restart.
func WithSettings(s sampler.Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// New creates a stopped controller. Sessions connect through connector and
// actuate through actuator.
func New(connector peer.Connector, actuator decision.Actuator, opts ...Option) *Controller {
	c := &Controller{
		connector: connector,
		actuator:  actuator,
		pub:       events.Discard,
		log:       logger.Nop(),
		settings:  sampler.DefaultSettings(),
		radio:     radio.Unknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects to the peer and spawns a sampling loop with a fresh
// window and engine. It fails with ErrSessionAlreadyRunning if a session
// is active and with ErrRadioUnavailable while the radio is disabled.
func (c *Controller) Start(settings sampler.Settings) (*sampler.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.startLocked(settings)
}

func (c *Controller) startLocked(settings sampler.Settings) (*sampler.Session, error) {
	if c.active != nil {
		return nil, ErrSessionAlreadyRunning.WithData(c.active.session.ID())
	}
	if c.radio.Disabled() {
		return nil, ErrRadioUnavailable.WithData(string(c.radio))
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	link, err := c.connector.Connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	session, err := sampler.New(settings, link, c.actuator,
		sampler.WithPublisher(c.pub),
		sampler.WithLogger(c.log),
	)
	if err != nil {
		cancel()
		_ = link.Close()
		return nil, err
	}

	c.active = &running{session: session, link: link, cancel: cancel}
	c.settings = settings

	c.pub.Publish(events.Event{
		Type:      events.SessionStarted,
		Time:      time.Now(),
		SessionID: session.ID(),
		State:     session.State(),
	})
	c.log.Info().
		Str("session_id", session.ID()).
		Dur("interval", settings.Interval).
		Float64("threshold", settings.Threshold).
		Int("window", settings.Window).
		Msg("Session started")

	go session.Run(ctx)

	return session, nil
}

// Stop cancels session and blocks until its loop has returned, then
// releases the peer link. It fails with ErrSessionNotRunning if session is
// not the active one.
func (c *Controller) Stop(session *sampler.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || session == nil || c.active.session != session {
		return ErrSessionNotRunning
	}
	return c.stopLocked(events.ReasonUser)
}

// StopActive stops whichever session is running.
func (c *Controller) StopActive(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrSessionNotRunning
	}
	return c.stopLocked(reason)
}

func (c *Controller) stopLocked(reason string) error {
	r := c.active
	c.active = nil

	r.cancel()
	<-r.session.Done()

	// The loop has returned; completions arriving now are discarded by the
	// link.
	err := r.link.Close()
	if err != nil {
		c.log.Warn().Err(err).Str("session_id", r.session.ID()).Msg("Failed to release peer link")
	}

	c.pub.Publish(events.Event{
		Type:      events.SessionStopped,
		Time:      time.Now(),
		SessionID: r.session.ID(),
		Reason:    reason,
	})
	c.log.Info().
		Str("session_id", r.session.ID()).
		Str("reason", reason).
		Msg("Session stopped")

	return err
}

// Restart replaces the running session with one using settings. When
// nothing is running it is a plain Start.
func (c *Controller) Restart(settings sampler.Settings) (*sampler.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if c.active != nil {
		_ = c.stopLocked(events.ReasonRestart)
	}
	return c.startLocked(settings)
}

// Resume starts a session with the last used settings.
func (c *Controller) Resume() (*sampler.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.startLocked(c.settings)
}

// Settings returns the settings of the running or last started session.
func (c *Controller) Settings() sampler.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Toggle starts a session with the last used settings when stopped and
// stops the active one otherwise. It reports whether a session is running
// afterwards.
func (c *Controller) Toggle() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return false, c.stopLocked(events.ReasonUser)
	}
	_, err := c.startLocked(c.settings)
	return err == nil, err
}

// Active returns the running session, or nil.
func (c *Controller) Active() *sampler.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil
	}
	return c.active.session
}

func (c *Controller) Running() bool {
	return c.Active() != nil
}

// Radio returns the last reported radio state.
func (c *Controller) Radio() radio.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radio
}

// OnRadioStateChanged stops the running session once the radio is off or
// turning off.
func (c *Controller) OnRadioStateChanged(state radio.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.radio = state
	c.pub.Publish(events.Event{
		Type:  events.RadioChanged,
		Time:  time.Now(),
		Radio: string(state),
	})

	if !state.Disabled() || c.active == nil {
		return
	}

	c.log.Warn().Str("radio", string(state)).Msg("Radio disabled, stopping session")
	_ = c.stopLocked(events.ReasonRadioOff)
}

// Shutdown stops the running session, if any.
func (c *Controller) Shutdown() {
	if err := c.StopActive(events.ReasonShutdown); err != nil && !errors.Is(err, ErrSessionNotRunning) {
		c.log.Warn().Err(err).Msg("Failed to stop session on shutdown")
	}
}
