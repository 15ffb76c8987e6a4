package main

import (
	"context"

	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/proxlock/internal/actuator"
	"codeberg.org/mutker/proxlock/internal/config"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/journal"
	"codeberg.org/mutker/proxlock/internal/lifecycle"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/mqtt"
	"codeberg.org/mutker/proxlock/internal/peer"
	"codeberg.org/mutker/proxlock/internal/pid"
	"codeberg.org/mutker/proxlock/internal/radio"
	"codeberg.org/mutker/proxlock/internal/server"
	"codeberg.org/mutker/proxlock/internal/telemetry"
)

// daemon owns everything a running proxlock instance holds open.
type daemon struct {
	cfg     *config.Config
	log     logger.Logger
	pid     *pid.File
	bus     *events.Bus
	metrics *telemetry.Collectors
	journal journal.Journal
	act     actuator.Actuator
	ctrl    *lifecycle.Controller
}

func newDaemon(ctx context.Context, cfg *config.Config) (*daemon, error) {
	d := &daemon{
		cfg: cfg,
		log: logger.Component("daemon"),
	}

	pf, err := pid.Acquire(cfg.PIDFile)
	if err != nil {
		return nil, err
	}
	d.pid = pf

	d.metrics = telemetry.New(nil)
	d.bus = events.NewBus(
		events.WithDropHandler(d.metrics.Dropped),
		events.WithLogger(logger.Component("events")),
	)
	d.bus.Subscribe("telemetry", d.metrics)

	d.journal, err = journal.NewService(cfg.JournalConfig(), logger.Component("journal"))
	if err != nil {
		d.close()
		return nil, err
	}
	d.bus.Subscribe("journal", journal.NewListener(d.journal, logger.Component("journal")))

	d.act, err = actuator.Open(ctx, cfg.ActuatorOptions(logger.Component("actuator")))
	if err != nil {
		d.close()
		return nil, err
	}

	d.ctrl = lifecycle.New(newConnector(cfg), d.act,
		lifecycle.WithPublisher(d.bus),
		lifecycle.WithLogger(logger.Component("lifecycle")),
		lifecycle.WithSettings(cfg.Settings()),
	)

	return d, nil
}

func newConnector(cfg *config.Config) peer.Connector {
	readTimeout := cfg.Settings().ReadTimeout
	if cfg.Demo {
		return peer.NewDemoConnector(readTimeout)
	}
	return peer.NewBLEConnector(peer.Adapter(cfg.Adapter), cfg.Peer,
		peer.WithGATT(cfg.Connect),
		peer.WithReadTimeout(readTimeout),
		peer.WithLogger(logger.Component("peer")),
	)
}

// run starts a session and the configured surfaces, then blocks until ctx
// is done or front returns. front may be nil.
func (d *daemon) run(ctx context.Context, front func(context.Context) error) error {
	var pub *mqtt.Publisher
	if d.cfg.MQTTBroker != "" {
		var err error
		if pub, err = mqtt.New(d.cfg.MQTTConfig(), logger.Component("mqtt")); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if !d.cfg.Demo {
		watcher := radio.NewBlueZWatcher(d.cfg.Adapter, logger.Component("radio"))
		g.Go(func() error {
			if err := watcher.Watch(gctx, d.ctrl); err != nil {
				d.log.Warn().Err(err).Msg("Radio state unavailable, not watching for radio off")
			}
			return nil
		})
	}

	if d.cfg.Listen != "" {
		srv := server.New(d.ctrl,
			server.WithMetrics(d.metrics.Handler()),
			server.WithLogger(logger.Component("server")),
		)
		d.bus.Subscribe("websocket", srv.Hub())
		g.Go(func() error {
			return srv.Run(gctx, d.cfg.Listen)
		})
	}

	if pub != nil {
		d.bus.Subscribe("mqtt", pub)
		g.Go(func() error {
			return pub.Run(gctx)
		})
	}

	if _, err := d.ctrl.Start(d.cfg.Settings()); err != nil {
		if !errors.HasCode(err, errors.ErrRadioUnavailable) {
			cancel()
			_ = g.Wait()
			return err
		}
		d.log.Warn().Err(err).Msg("Radio is off, waiting for a start request")
	}

	if front != nil {
		g.Go(func() error {
			defer cancel()
			return front(gctx)
		})
	}

	<-gctx.Done()
	d.ctrl.Shutdown()

	return g.Wait()
}

func (d *daemon) close() {
	if d.ctrl != nil {
		d.ctrl.Shutdown()
	}
	if d.act != nil {
		if err := d.act.Close(); err != nil {
			d.log.Warn().Err(err).Msg("Failed to close actuator")
		}
	}
	if d.bus != nil {
		d.bus.Close()
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if d.pid != nil {
		if err := d.pid.Release(); err != nil {
			d.log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}
}
