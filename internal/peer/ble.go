package peer

import (
	"context"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
	"tinygo.org/x/bluetooth"
)

var errFactory = errors.New()

const defaultReadTimeout = 10 * time.Second

// BLEConnector connects to a peer over Bluetooth Low Energy. Signal
// strength is read from the peer's advertisements while a short scan runs.
type BLEConnector struct {
	adapter *bluetooth.Adapter
	address string
	gatt    bool
	timeout time.Duration
	log     logger.Logger

	// enableAdapter powers the radio and installs the connect handler.
	// It runs until it succeeds once.
	enableAdapter func() error
	enableMu      sync.Mutex
	enabled       bool

	linkMu sync.Mutex
	link   *bleLink

	// Only one scan may run on an adapter at a time.
	scanMu sync.Mutex
}

// BLEOption configures a BLEConnector.
type BLEOption func(*BLEConnector)

// WithGATT makes the connector hold a GATT connection to the peer while
// the link is open.
func WithGATT(enabled bool) BLEOption {
	return func(c *BLEConnector) { c.gatt = enabled }
}

// WithReadTimeout bounds how long a single read may stay outstanding.
func WithReadTimeout(d time.Duration) BLEOption {
	return func(c *BLEConnector) { c.timeout = d }
}

// WithLogger sets the connector's logger.
func WithLogger(l logger.Logger) BLEOption {
	return func(c *BLEConnector) { c.log = l }
}

// NewBLEConnector returns a connector for the peer with the given MAC
// address on adapter. An empty address selects the first named device.
func NewBLEConnector(adapter *bluetooth.Adapter, address string, opts ...BLEOption) *BLEConnector {
	c := &BLEConnector{
		adapter: adapter,
		address: strings.TrimSpace(address),
		gatt:    true,
		timeout: defaultReadTimeout,
		log:     logger.Nop(),
	}
	c.enableAdapter = func() error {
		if err := adapter.Enable(); err != nil {
			return err
		}
		adapter.SetConnectHandler(c.onConnect)
		return nil
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BLEConnector) enable() error {
	c.enableMu.Lock()
	defer c.enableMu.Unlock()

	if c.enabled {
		return nil
	}
	if err := c.enableAdapter(); err != nil {
		return errFactory.Wrap(ErrAdapterEnable, err)
	}
	c.enabled = true
	return nil
}

func (c *BLEConnector) matches(result bluetooth.ScanResult) bool {
	if c.address == "" {
		return result.LocalName() != ""
	}
	return strings.EqualFold(result.Address.String(), c.address)
}

func (c *BLEConnector) onConnect(device bluetooth.Device, connected bool) {
	c.linkMu.Lock()
	l := c.link
	c.linkMu.Unlock()

	if l == nil || connected {
		return
	}
	l.dropDevice(device.Address)
}

// scan runs a scan until fn returns true, the timeout elapses or ctx is
// done. A zero timeout scans until ctx is done.
func (c *BLEConnector) scan(ctx context.Context, timeout time.Duration, fn func(bluetooth.ScanResult) bool) error {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	stop := func() { _ = c.adapter.StopScan() }

	stopOnCancel := context.AfterFunc(ctx, stop)
	defer stopOnCancel()

	if timeout > 0 {
		timer := time.AfterFunc(timeout, stop)
		defer timer.Stop()
	}

	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if fn(result) {
			_ = adapter.StopScan()
		}
	})
	if err != nil && ctx.Err() == nil {
		return errFactory.Wrap(ErrScanFailed, err)
	}
	return nil
}

// Connect enables the adapter and returns a link whose setup continues in
// the background until the peer has been found.
func (c *BLEConnector) Connect(ctx context.Context) (Link, error) {
	if err := c.enable(); err != nil {
		return nil, err
	}

	linkCtx, cancel := context.WithCancel(ctx)
	l := &bleLink{
		conn:    c,
		mailbox: NewMailbox(c.timeout),
		ctx:     linkCtx,
		cancel:  cancel,
		log:     c.log,
	}

	c.linkMu.Lock()
	c.link = l
	c.linkMu.Unlock()

	l.wg.Add(1)
	go l.establish()

	return l, nil
}

type bleLink struct {
	conn    *BLEConnector
	mailbox *Mailbox
	ctx     context.Context
	cancel  context.CancelFunc
	log     logger.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	ready   bool
	target  bluetooth.Address
	device  *bluetooth.Device
	closeMu sync.Once
}

func (l *bleLink) establish() {
	defer l.wg.Done()

	var (
		found bool
		addr  bluetooth.Address
		name  string
	)

	for !found {
		err := l.conn.scan(l.ctx, 0, func(result bluetooth.ScanResult) bool {
			if !l.conn.matches(result) {
				return false
			}
			addr = result.Address
			name = result.LocalName()
			found = true
			return true
		})
		if l.ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Warn().Err(err).Msg("Peer scan failed, retrying")
			if !sleepCtx(l.ctx, time.Second) {
				return
			}
		}
	}

	l.log.Info().
		Str("address", addr.String()).
		Str("name", name).
		Msg("Peer found")

	var device *bluetooth.Device
	if l.conn.gatt {
		d, err := l.conn.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			// Advertisement-only peers still provide readings.
			l.log.Warn().
				Err(errFactory.Wrap(ErrConnectFailed, err)).
				Str("address", addr.String()).
				Msg("GATT connection failed, continuing with advertisements")
		} else {
			device = &d
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		if device != nil {
			_ = device.Disconnect()
		}
		return
	}

	l.target = addr
	l.device = device
	l.ready = true
}

// dropDevice forgets the GATT connection after the peer disconnected.
// Readings continue from advertisements.
func (l *bleLink) dropDevice(addr bluetooth.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.device == nil || !strings.EqualFold(addr.String(), l.target.String()) {
		return
	}
	l.device = nil
	l.log.Warn().Str("address", addr.String()).Msg("Peer disconnected")
}

func (l *bleLink) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

func (l *bleLink) RequestSample() {
	l.mu.Lock()
	ready, target := l.ready, l.target
	l.mu.Unlock()

	if !ready {
		return
	}

	seq, ok := l.mailbox.Begin()
	if !ok {
		return
	}

	want := target.String()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		completed := false
		err := l.conn.scan(l.ctx, l.conn.timeout, func(result bluetooth.ScanResult) bool {
			if !strings.EqualFold(result.Address.String(), want) {
				return false
			}
			completed = l.mailbox.Complete(seq, int(result.RSSI))
			return true
		})
		if !completed {
			l.mailbox.Fail(seq)
		}
		if err != nil {
			l.log.Debug().Err(err).Msg("Signal read failed")
		}
	}()
}

func (l *bleLink) LastSample() (int, bool) {
	return l.mailbox.Last()
}

func (l *bleLink) Close() error {
	var err error
	l.closeMu.Do(func() {
		l.cancel()
		l.mailbox.Close()
		l.wg.Wait()

		l.conn.linkMu.Lock()
		if l.conn.link == l {
			l.conn.link = nil
		}
		l.conn.linkMu.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()

		l.ready = false
		if l.device != nil {
			if derr := l.device.Disconnect(); derr != nil {
				err = errFactory.Wrap(ErrDisconnect, derr)
			}
			l.device = nil
		}
	})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
