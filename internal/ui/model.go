// Package ui renders a live terminal view of the proximity pipeline.
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/events"
)

const historySize = 48

// Toggler starts or stops the sampling service.
type Toggler interface {
	Toggle() (bool, error)
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(tea.Msg)
}

// EventMsg wraps a pipeline event for delivery to the Bubble Tea loop.
type EventMsg events.Event

type toggledMsg struct {
	running bool
	err     error
}

// Listener forwards bus events into a running program.
func Listener(s Sender) events.Listener {
	return events.ListenerFunc(func(ev events.Event) {
		s.Send(EventMsg(ev))
	})
}

// Model is the root Bubble Tea model. Bubble Tea copies the model on every
// update, so the sample history is shared through a pointer.
type Model struct {
	width int

	toggler Toggler
	peer    string
	monitor bool

	running   bool
	sessionID string
	lastRSSI  *int
	smoothed  *float64
	state     decision.LockState
	decided   bool
	degraded  bool
	failures  int
	radio     string
	stopped   string
	err       error

	samples *history
}

// Option configures a Model.
type Option func(*Model)

// WithPeer sets the peer label shown in the title bar.
func WithPeer(peer string) Option {
	return func(m *Model) { m.peer = peer }
}

// WithMonitorOnly marks the view as observing without actuation.
func WithMonitorOnly(monitor bool) Option {
	return func(m *Model) { m.monitor = monitor }
}

// WithRunning sets the initial service state.
func WithRunning(running bool) Option {
	return func(m *Model) { m.running = running }
}

func New(toggler Toggler, opts ...Option) Model {
	m := Model{
		toggler: toggler,
		samples: newHistory(historySize),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case toggledMsg:
		m.err = msg.err
		if msg.err == nil {
			m.running = msg.running
		}
		return m, nil

	case EventMsg:
		m.apply(events.Event(msg))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "s", "S":
		if m.toggler == nil {
			return m, nil
		}
		t := m.toggler
		return m, func() tea.Msg {
			running, err := t.Toggle()
			return toggledMsg{running: running, err: err}
		}
	}

	return m, nil
}

func (m *Model) apply(ev events.Event) {
	switch ev.Type {
	case events.SessionStarted:
		m.running = true
		m.sessionID = ev.SessionID
		m.stopped = ""
		m.lastRSSI = nil
		m.smoothed = nil
		m.state = ev.State
		m.decided = false
		m.degraded = false
		m.failures = 0
		m.samples.reset()

	case events.SessionStopped:
		m.running = false
		m.stopped = ev.Reason

	case events.SampleRead:
		v := ev.RSSI
		m.lastRSSI = &v
		m.samples.push(v)

	case events.SampleSmoothed:
		v := ev.Smoothed
		m.smoothed = &v

	case events.LockStateChanged:
		m.state = ev.State
		m.decided = true

	case events.ActuatorFailed:
		m.failures = ev.Failures

	case events.Degraded:
		m.degraded = true
		m.failures = ev.Failures

	case events.Recovered:
		m.degraded = false
		m.failures = 0

	case events.RadioChanged:
		m.radio = ev.Radio
	}
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 60
	}

	rows := []string{
		row("Service", m.serviceLine()),
		row("Radio", m.radioLine()),
		row("Sample", m.sampleLine()),
		row("Smoothed", m.smoothedLine()),
		row("State", m.stateLine()),
		row("Recent", styleSpark.Render(sparkline(m.samples.values()))),
	}
	if m.err != nil {
		rows = append(rows, styleWarning.Render(m.err.Error()))
	}

	panel := stylePanel.Width(max(width-2, 20)).Render(strings.Join(rows, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleBar(width),
		panel,
		helpLine(),
	)
}

func (m Model) titleBar(width int) string {
	title := "proxlock"
	if m.peer != "" {
		title += "  " + m.peer
	}
	if m.monitor {
		title += "  (monitor only)"
	}
	return styleTitleBar.Width(width).Render(title)
}

func (m Model) serviceLine() string {
	if m.running {
		line := "running"
		if m.sessionID != "" {
			line += " " + shortID(m.sessionID)
		}
		if m.degraded {
			line += "  " + styleWarning.Render(fmt.Sprintf("DEGRADED (%d failures)", m.failures))
		}
		return styleValue.Render(line)
	}
	if m.stopped != "" {
		return styleValue.Render("stopped (" + m.stopped + ")")
	}
	return styleValue.Render("stopped")
}

func (m Model) radioLine() string {
	if m.radio == "" {
		return styleValue.Render("unknown")
	}
	return styleValue.Render(m.radio)
}

func (m Model) sampleLine() string {
	if m.lastRSSI == nil {
		return styleValue.Render("waiting…")
	}
	return styleValue.Render(fmt.Sprintf("%d dBm", *m.lastRSSI))
}

func (m Model) smoothedLine() string {
	if m.smoothed == nil {
		return styleValue.Render("warming up")
	}
	return styleValue.Render(fmt.Sprintf("%.1f dBm", *m.smoothed))
}

func (m Model) stateLine() string {
	label := m.state.String()
	if !m.decided {
		label += " (initial)"
	}
	if m.state == decision.Locked {
		return styleLocked.Render(label)
	}
	return styleUnlocked.Render(label)
}

func row(label, value string) string {
	return styleLabel.Render(label) + value
}

func helpLine() string {
	return " " + styleKey.Render("[s]") + styleHelp.Render(" start/stop  ") +
		styleKey.Render("[q]") + styleHelp.Render(" quit")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
