package actuator

import (
	"context"
	"os/exec"
	"strings"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
)

const ErrCommandFailed = errors.ErrorCode("actuator_command_failed")

// Command runs shell commands to lock and unlock. An empty unlock command
// makes unlocking a no-op, which suits screen lockers that require the
// user to authenticate.
type Command struct {
	lock   string
	unlock string
	shell  string
	log    logger.Logger
}

// NewCommand returns an actuator running lock and unlock through sh -c.
func NewCommand(lock, unlock string, log logger.Logger) (*Command, error) {
	lock = strings.TrimSpace(lock)
	if lock == "" {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "lock_command is required for the command actuator")
	}
	return &Command{
		lock:   lock,
		unlock: strings.TrimSpace(unlock),
		shell:  "sh",
		log:    log,
	}, nil
}

func (c *Command) SetLocked(ctx context.Context, locked bool) error {
	cmdline := c.unlock
	if locked {
		cmdline = c.lock
	}
	if cmdline == "" {
		return nil
	}

	out, err := exec.CommandContext(ctx, c.shell, "-c", cmdline).CombinedOutput()
	if err != nil {
		output := strings.TrimSpace(string(out))
		c.log.Debug().
			Str("command", cmdline).
			Str("output", output).
			Msg("Command failed")
		if output != "" {
			return errFactory.Wrap(ErrCommandFailed, err).WithMessage(output)
		}
		return errFactory.Wrap(ErrCommandFailed, err)
	}

	c.log.Debug().Str("command", cmdline).Bool("locked", locked).Msg("Command succeeded")
	return nil
}

func (c *Command) Close() error {
	return nil
}
