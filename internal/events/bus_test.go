package events_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) OnEvent(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
}

func (r *recorder) events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.got...)
}

func TestBusFanOut(t *testing.T) {
	bus := events.NewBus()
	a, b := &recorder{}, &recorder{}
	bus.Subscribe("a", a)
	bus.Subscribe("b", b)

	bus.Publish(events.Event{Type: events.SampleRead, RSSI: -3})
	bus.Publish(events.Event{Type: events.SampleSmoothed, Smoothed: -2.5})
	bus.Close()

	for _, r := range []*recorder{a, b} {
		got := r.events()
		require.Len(t, got, 2)
		assert.Equal(t, events.SampleRead, got[0].Type)
		assert.False(t, got[0].Time.IsZero())
		assert.InDelta(t, -2.5, got[1].Smoothed, 1e-9)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	r := &recorder{}
	unsubscribe := bus.Subscribe("r", r)

	bus.Publish(events.Event{Type: events.SampleRead})
	unsubscribe()
	unsubscribe()
	bus.Publish(events.Event{Type: events.SampleRead})
	bus.Close()

	assert.Len(t, r.events(), 1)
}

func TestBusDropsWhenListenerIsSlow(t *testing.T) {
	release := make(chan struct{})
	var dropped []string
	var mu sync.Mutex

	bus := events.NewBus(
		events.WithQueueSize(1),
		events.WithDropHandler(func(name string, _ events.Event) {
			mu.Lock()
			dropped = append(dropped, name)
			mu.Unlock()
		}),
	)
	bus.Subscribe("slow", events.ListenerFunc(func(events.Event) { <-release }))

	start := time.Now()
	for i := 0; i < 10; i++ {
		bus.Publish(events.Event{Type: events.SampleRead})
	}
	assert.Less(t, time.Since(start), time.Second, "publish must not block")

	close(release)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, dropped)
	assert.Equal(t, "slow", dropped[0])
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := events.NewBus()
	bus.Close()

	r := &recorder{}
	unsubscribe := bus.Subscribe("late", r)
	bus.Publish(events.Event{Type: events.SampleRead})
	unsubscribe()

	assert.Empty(t, r.events())
}

func TestEventJSON(t *testing.T) {
	raw, err := json.Marshal(events.Event{
		Type:      events.LockStateChanged,
		SessionID: "s1",
		State:     decision.Unlocked,
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "lock_state_changed", m["type"])
	assert.Equal(t, "unlocked", m["lock_state"])
	assert.Equal(t, "s1", m["session_id"])

	raw, err = json.Marshal(events.Event{Type: events.SampleRead, RSSI: 0})
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotContains(t, m, "lock_state")
	assert.Contains(t, m, "rssi", "0 dBm is a real reading")
	assert.EqualValues(t, 0, m["rssi"])
}
