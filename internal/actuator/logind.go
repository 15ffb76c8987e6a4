package actuator

import (
	"context"
	"os"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	login1Service   = "org.freedesktop.login1"
	login1Path      = dbus.ObjectPath("/org/freedesktop/login1")
	managerIface    = "org.freedesktop.login1.Manager"
	sessionIface    = "org.freedesktop.login1.Session"
	autoSessionName = "auto"
)

const ErrLogind = errors.ErrorCode("actuator_logind_failed")

// Logind locks and unlocks a session through systemd-logind.
type Logind struct {
	conn    *dbus.Conn
	session dbus.BusObject
	path    dbus.ObjectPath
	log     logger.Logger
}

// NewLogind connects to the system bus and resolves the session to act on.
func NewLogind(ctx context.Context, session string, log logger.Logger) (*Logind, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, errFactory.Wrap(ErrLogind, err)
	}

	id := resolveSessionID(session, os.Getenv)

	var path dbus.ObjectPath
	err = conn.Object(login1Service, login1Path).
		CallWithContext(ctx, managerIface+".GetSession", 0, id).
		Store(&path)
	if err != nil {
		conn.Close()
		return nil, errFactory.Wrap(ErrLogind, err).WithData(id)
	}

	log.Debug().Str("session", id).Str("path", string(path)).Msg("Resolved logind session")

	return &Logind{
		conn:    conn,
		session: conn.Object(login1Service, path),
		path:    path,
		log:     log,
	}, nil
}

func resolveSessionID(configured string, getenv func(string) string) string {
	if configured != "" {
		return configured
	}
	if id := getenv("XDG_SESSION_ID"); id != "" {
		return id
	}
	return autoSessionName
}

func lockMethod(locked bool) string {
	if locked {
		return sessionIface + ".Lock"
	}
	return sessionIface + ".Unlock"
}

func (l *Logind) SetLocked(ctx context.Context, locked bool) error {
	if err := l.session.CallWithContext(ctx, lockMethod(locked), 0).Err; err != nil {
		return errFactory.Wrap(ErrLogind, err)
	}
	return nil
}

func (l *Logind) Close() error {
	return l.conn.Close()
}
