// Package journal keeps an optional SQLite record of session starts and
// stops, lock transitions and actuator health. Nothing in it is read back
// into a running session.
package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
)

const recordTimeout = 2 * time.Second

type service struct {
	repo Repository
	log  logger.Logger
}

type noopJournal struct{}

// NewService returns a journal backed by SQLite, or a no-op journal when
// cfg.Enabled is false.
func NewService(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Journal disabled, using no-op journal")
		return &noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo, log: log}, nil
}

func (s *service) Record(ctx context.Context, entry *Entry) error {
	errFactory := errors.New()

	if entry == nil || entry.Type == "" {
		return errFactory.New(ErrInvalidEntry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	default:
	}

	return s.repo.Record(entry)
}

func (s *service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, limit)
	}
	return s.repo.Recent(ctx, limit)
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopJournal) Record(context.Context, *Entry) error { return nil }

func (*noopJournal) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

func (*noopJournal) Close() error { return nil }

// Journaled reports whether events of type t are kept in the journal.
// Per-sample events are not.
func Journaled(t events.Type) bool {
	switch t {
	case events.SessionStarted, events.SessionStopped, events.LockStateChanged,
		events.ActuatorFailed, events.Degraded, events.Recovered, events.RadioChanged:
		return true
	default:
		return false
	}
}

// EntryFromEvent converts a journaled event.
func EntryFromEvent(ev events.Event) *Entry {
	e := &Entry{
		Time:      ev.Time,
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		Reason:    ev.Reason,
		Failures:  ev.Failures,
		Error:     ev.Error,
		Radio:     ev.Radio,
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	switch ev.Type {
	case events.LockStateChanged:
		e.State = ev.State.String()
		v := ev.Smoothed
		e.Smoothed = &v
	case events.SessionStarted, events.ActuatorFailed:
		e.State = ev.State.String()
	}

	return e
}

// Listener adapts a Journal to the event bus.
type Listener struct {
	journal Journal
	log     logger.Logger
}

func NewListener(j Journal, log logger.Logger) *Listener {
	return &Listener{journal: j, log: log}
}

func (l *Listener) OnEvent(ev events.Event) {
	if !Journaled(ev.Type) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := l.journal.Record(ctx, EntryFromEvent(ev)); err != nil {
		l.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to journal event")
	}
}
