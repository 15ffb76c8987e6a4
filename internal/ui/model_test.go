package ui

import (
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/events"
)

type fakeToggler struct {
	running bool
	err     error
	calls   int
}

func (f *fakeToggler) Toggle() (bool, error) {
	f.calls++
	if f.err != nil {
		return f.running, f.err
	}
	f.running = !f.running
	return f.running, nil
}

type sendRecorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sendRecorder) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestViewBeforeFirstSample(t *testing.T) {
	m := New(nil)
	m = update(t, m, EventMsg{Type: events.SessionStarted, SessionID: "0123456789abcdef"})

	view := m.View()
	assert.Contains(t, view, "waiting…")
	assert.Contains(t, view, "warming up")
	assert.Contains(t, view, "running 01234567")
	assert.Contains(t, view, "locked (initial)")
}

func TestSamplesAndTransitions(t *testing.T) {
	m := New(nil)
	m = update(t, m, EventMsg{Type: events.SessionStarted, SessionID: "s1"})
	for _, v := range []int{-1, -2, -3} {
		m = update(t, m, EventMsg{Type: events.SampleRead, RSSI: v})
	}
	m = update(t, m, EventMsg{Type: events.SampleSmoothed, Smoothed: -2})
	m = update(t, m, EventMsg{Type: events.LockStateChanged, State: decision.Unlocked})

	view := m.View()
	assert.Contains(t, view, "-3 dBm")
	assert.Contains(t, view, "-2.0 dBm")
	assert.Contains(t, view, "unlocked")
	assert.NotContains(t, view, "(initial)")
	assert.Equal(t, []int{-1, -2, -3}, m.samples.values())
}

func TestNewSessionClearsReadings(t *testing.T) {
	m := New(nil)
	m = update(t, m, EventMsg{Type: events.SessionStarted, SessionID: "s1"})
	m = update(t, m, EventMsg{Type: events.SampleRead, RSSI: -7})
	m = update(t, m, EventMsg{Type: events.SampleSmoothed, Smoothed: -7})
	m = update(t, m, EventMsg{Type: events.SessionStopped, Reason: events.ReasonRestart})
	assert.Contains(t, m.View(), "stopped (restart)")

	m = update(t, m, EventMsg{Type: events.SessionStarted, SessionID: "s2"})
	assert.Nil(t, m.lastRSSI)
	assert.Nil(t, m.smoothed)
	assert.Empty(t, m.samples.values())
	assert.Contains(t, m.View(), "waiting…")
}

func TestDegradedFlag(t *testing.T) {
	m := New(nil, WithRunning(true))
	m = update(t, m, EventMsg{Type: events.Degraded, Failures: 3})
	assert.Contains(t, m.View(), "DEGRADED (3 failures)")

	m = update(t, m, EventMsg{Type: events.Recovered})
	assert.NotContains(t, m.View(), "DEGRADED")
}

func TestRadioState(t *testing.T) {
	m := New(nil)
	assert.Contains(t, m.View(), "unknown")

	m = update(t, m, EventMsg{Type: events.RadioChanged, Radio: "off"})
	assert.Contains(t, m.View(), "off")
}

func TestToggleKey(t *testing.T) {
	toggler := &fakeToggler{}
	m := New(toggler)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, 1, toggler.calls)
	m = update(t, m, msg)
	assert.True(t, m.running)
}

func TestToggleError(t *testing.T) {
	toggler := &fakeToggler{err: errors.New("radio is off")}
	m := New(toggler)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)
	m = update(t, m, cmd())

	assert.False(t, m.running)
	assert.Contains(t, m.View(), "radio is off")
}

func TestQuitKey(t *testing.T) {
	m := New(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTitleBar(t *testing.T) {
	m := New(nil, WithPeer("AA:BB:CC:DD:EE:FF"), WithMonitorOnly(true))
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	view := m.View()
	assert.Contains(t, view, "AA:BB:CC:DD:EE:FF")
	assert.Contains(t, view, "monitor only")
}

func TestListenerForwardsEvents(t *testing.T) {
	rec := &sendRecorder{}
	l := Listener(rec)

	l.OnEvent(events.Event{Type: events.SampleRead, RSSI: -4})

	require.Len(t, rec.msgs, 1)
	msg, ok := rec.msgs[0].(EventMsg)
	require.True(t, ok)
	assert.Equal(t, -4, msg.RSSI)
}

func TestHistoryWraps(t *testing.T) {
	h := newHistory(3)
	for _, v := range []int{1, 2, 3, 4, 5} {
		h.push(v)
	}
	assert.Equal(t, []int{3, 4, 5}, h.values())

	h.reset()
	assert.Nil(t, h.values())
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil))
	assert.Equal(t, "▁█", sparkline([]int{-10, 0}))
	assert.Equal(t, "▄▄", sparkline([]int{-3, -3}))
}
