// Package telemetry exports the pipeline's events as Prometheus metrics.
package telemetry

import (
	"net/http"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/radio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proxlock"

// Collectors holds every metric. Metrics are updated from events only.
type Collectors struct {
	SamplesTotal         prometheus.Counter
	LastRSSI             prometheus.Gauge
	Smoothed             prometheus.Gauge
	PeerUnavailableTotal prometheus.Counter

	LockState        prometheus.Gauge
	TransitionsTotal *prometheus.CounterVec

	ActuatorFailuresTotal prometheus.Counter
	Degraded              prometheus.Gauge

	SessionsStartedTotal prometheus.Counter
	SessionsStoppedTotal *prometheus.CounterVec
	SessionRunning       prometheus.Gauge

	RadioPowered prometheus.Gauge

	EventsDroppedTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collectors{
		SamplesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "samples_total",
			Help:      "Total samples pushed into the averaging window",
		}),
		LastRSSI: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "rssi_dbm",
			Help:      "Last raw signal strength read from the peer",
		}),
		Smoothed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "smoothed_dbm",
			Help:      "Last windowed mean signal strength",
		}),
		PeerUnavailableTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "peer_unavailable_total",
			Help:      "Total ticks skipped because the peer was not connected",
		}),
		LockState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "locked",
			Help:      "1 when the engine considers the host locked",
		}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "transitions_total",
			Help:      "Total lock state transitions by target state",
		}, []string{"state"}),
		ActuatorFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "failures_total",
			Help:      "Total failed lock or unlock calls",
		}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "degraded",
			Help:      "1 while consecutive actuator failures exceed the limit",
		}),
		SessionsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "sessions_started_total",
			Help:      "Total sampling sessions started",
		}),
		SessionsStoppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "sessions_stopped_total",
			Help:      "Total sampling sessions stopped by reason",
		}, []string{"reason"}),
		SessionRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "session_running",
			Help:      "1 while a sampling session is running",
		}),
		RadioPowered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "powered",
			Help:      "1 while the Bluetooth adapter is powered on",
		}),
		EventsDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total events dropped because a listener fell behind",
		}, []string{"listener"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Dropped counts an event dropped for listener name. It matches
// events.DropFunc.
func (c *Collectors) Dropped(name string, _ events.Event) {
	c.EventsDroppedTotal.WithLabelValues(name).Inc()
}

func (c *Collectors) OnEvent(ev events.Event) {
	switch ev.Type {
	case events.SampleRead:
		c.SamplesTotal.Inc()
		c.LastRSSI.Set(float64(ev.RSSI))
	case events.SampleSmoothed:
		c.Smoothed.Set(ev.Smoothed)
	case events.PeerUnavailable:
		c.PeerUnavailableTotal.Inc()
	case events.LockStateChanged:
		c.LockState.Set(boolToFloat(ev.State.IsLocked()))
		c.TransitionsTotal.WithLabelValues(ev.State.String()).Inc()
	case events.ActuatorFailed:
		c.ActuatorFailuresTotal.Inc()
	case events.Degraded:
		c.Degraded.Set(1)
	case events.Recovered:
		c.Degraded.Set(0)
	case events.SessionStarted:
		c.SessionsStartedTotal.Inc()
		c.SessionRunning.Set(1)
		c.LockState.Set(boolToFloat(ev.State == decision.Locked))
		c.Degraded.Set(0)
	case events.SessionStopped:
		c.SessionsStoppedTotal.WithLabelValues(ev.Reason).Inc()
		c.SessionRunning.Set(0)
	case events.RadioChanged:
		c.RadioPowered.Set(boolToFloat(radio.State(ev.Radio) == radio.On))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
