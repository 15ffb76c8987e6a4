package radio

import (
	"context"
	"sync"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	bluezService     = "org.bluez"
	adapterInterface = "org.bluez.Adapter1"
	propsInterface   = "org.freedesktop.DBus.Properties"
	propsChanged     = "PropertiesChanged"
)

var errFactory = errors.New()

// BlueZWatcher follows an adapter's power state over the system bus.
type BlueZWatcher struct {
	adapter string
	path    dbus.ObjectPath
	log     logger.Logger

	mu    sync.RWMutex
	state State
}

// NewBlueZWatcher creates a watcher for the named adapter, e.g. hci0.
func NewBlueZWatcher(adapter string, log logger.Logger) *BlueZWatcher {
	if adapter == "" {
		adapter = "hci0"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BlueZWatcher{
		adapter: adapter,
		path:    dbus.ObjectPath("/org/bluez/" + adapter),
		log:     log,
		state:   Unknown,
	}
}

// State returns the last observed state.
func (w *BlueZWatcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// set stores s and reports whether it differs from the previous state.
func (w *BlueZWatcher) set(s State) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == s {
		return false
	}
	w.state = s
	return true
}

// Watch reports the current state to l, then every change, until ctx is
// done.
func (w *BlueZWatcher) Watch(ctx context.Context, l Listener) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return errFactory.Wrap(errors.ErrRadioUnavailable, err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(w.path),
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember(propsChanged),
		dbus.WithMatchArg(0, adapterInterface),
	); err != nil {
		return errFactory.Wrap(errors.ErrRadioUnavailable, err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	props := make(map[string]dbus.Variant)
	err = conn.Object(bluezService, w.path).
		CallWithContext(ctx, propsInterface+".GetAll", 0, adapterInterface).
		Store(&props)
	if err != nil {
		return errFactory.Wrap(errors.ErrRadioUnavailable, err).WithData(w.adapter)
	}

	if st, ok := StateFromProperties(props); ok {
		w.set(st)
		w.log.Info().Str("adapter", w.adapter).Str("radio", string(st)).Msg("Radio state")
		l.OnRadioStateChanged(st)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errFactory.WithMessage(errors.ErrRadioUnavailable, "system bus connection closed")
			}
			st, ok := stateFromSignal(sig)
			if !ok || !w.set(st) {
				continue
			}
			w.log.Info().Str("adapter", w.adapter).Str("radio", string(st)).Msg("Radio state changed")
			l.OnRadioStateChanged(st)
		}
	}
}

// stateFromSignal extracts a state from a PropertiesChanged signal for
// Adapter1.
func stateFromSignal(sig *dbus.Signal) (State, bool) {
	if sig == nil || sig.Name != propsInterface+"."+propsChanged || len(sig.Body) < 2 {
		return Unknown, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != adapterInterface {
		return Unknown, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return Unknown, false
	}
	return StateFromProperties(changed)
}
