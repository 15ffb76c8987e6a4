// Package actuator applies lock decisions to the host.
package actuator

import (
	"context"
	"strings"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
)

const (
	KindLogind  = "logind"
	KindCommand = "command"
	KindNone    = "none"
)

const ErrUnknownKind = errors.ErrorCode("actuator_unknown_kind")

var errFactory = errors.New()

// Actuator locks and unlocks the host and holds whatever connection it
// needs until Close.
type Actuator interface {
	SetLocked(ctx context.Context, locked bool) error
	Close() error
}

// Options selects and configures an actuator.
type Options struct {
	Kind          string
	LockCommand   string
	UnlockCommand string
	// Session is the logind session id; empty uses XDG_SESSION_ID, then
	// the caller's own session.
	Session string
	Logger  logger.Logger
}

// Open creates the actuator named by opts.Kind.
func Open(ctx context.Context, opts Options) (Actuator, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	switch strings.ToLower(opts.Kind) {
	case KindLogind, "":
		return NewLogind(ctx, opts.Session, log)
	case KindCommand:
		return NewCommand(opts.LockCommand, opts.UnlockCommand, log)
	case KindNone:
		return NewNone(log), nil
	default:
		return nil, errFactory.WithData(ErrUnknownKind, opts.Kind)
	}
}

// None records decisions without acting on them.
type None struct {
	log logger.Logger
}

func NewNone(log logger.Logger) *None {
	return &None{log: log}
}

func (n *None) SetLocked(_ context.Context, locked bool) error {
	n.log.Info().Bool("locked", locked).Msg("Monitor mode, not actuating")
	return nil
}

func (n *None) Close() error {
	return nil
}
