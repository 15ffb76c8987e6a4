package mqtt

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu        sync.Mutex
	published map[string]string
	order     []string
	retained  bool
	onLost    func(error)
	connected chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{published: make(map[string]string), connected: make(chan struct{}, 4)}
}

func (c *fakeClient) Connect(context.Context, *paho.Connect) (*paho.Connack, error) {
	c.connected <- struct{}{}
	return &paho.Connack{}, nil
}

func (c *fakeClient) Publish(_ context.Context, pb *paho.Publish) (*paho.PublishResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[pb.Topic] = string(pb.Payload)
	c.order = append(c.order, pb.Topic)
	c.retained = pb.Retain
	return &paho.PublishResponse{}, nil
}

func (c *fakeClient) Disconnect(*paho.Disconnect) error {
	return nil
}

func (c *fakeClient) get(topic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.published[topic]
	return v, ok
}

func newTestPublisher(t *testing.T, client *fakeClient) *Publisher {
	t.Helper()

	p, err := New(Config{Broker: "localhost", Topic: "/home/desk/"}, logger.Nop())
	require.NoError(t, err)

	p.dial = func(context.Context, string) (net.Conn, error) {
		a, b := net.Pipe()
		t.Cleanup(func() { a.Close(); b.Close() })
		return a, nil
	}
	p.newClient = func(_ net.Conn, _ string, onLost func(error)) Client {
		client.onLost = onLost
		return client
	}
	return p
}

func TestBrokerAddr(t *testing.T) {
	tests := map[string]string{
		"localhost":              "localhost:1883",
		"broker:1884":            "broker:1884",
		"tcp://10.0.0.2:1883":    "10.0.0.2:1883",
		"mqtt://broker.lan":      "broker.lan:1883",
		"  tcp://broker.lan:99 ": "broker.lan:99",
	}
	for in, want := range tests {
		got, err := brokerAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := brokerAddr("")
	assert.True(t, errors.HasCode(err, ErrInvalidBroker))

	_, err = brokerAddr("ws://broker")
	assert.True(t, errors.HasCode(err, ErrInvalidBroker))
}

func TestValuesHeldUntilConnected(t *testing.T) {
	client := newFakeClient()
	p := newTestPublisher(t, client)

	p.OnEvent(events.Event{Type: events.SessionStarted, State: decision.Locked})
	p.OnEvent(events.Event{Type: events.SampleSmoothed, Smoothed: -3.25})
	p.OnEvent(events.Event{Type: events.LockStateChanged, State: decision.Unlocked})

	_, ok := client.get("home/desk/state")
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-client.connected
	require.Eventually(t, func() bool {
		v, ok := client.get("home/desk/state")
		return ok && v == "unlocked"
	}, time.Second, time.Millisecond)

	rssi, _ := client.get("home/desk/rssi")
	assert.Equal(t, "-3.2", rssi)
	session, _ := client.get("home/desk/session")
	assert.Equal(t, "running", session)
	assert.True(t, client.retained)

	cancel()
	assert.NoError(t, <-done)
}

func TestPublishWhileConnected(t *testing.T) {
	client := newFakeClient()
	p := newTestPublisher(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	<-client.connected

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.client != nil
	}, time.Second, time.Millisecond)

	p.OnEvent(events.Event{Type: events.SampleRead, RSSI: -1})
	p.OnEvent(events.Event{Type: events.Degraded})

	v, ok := client.get("home/desk/session")
	assert.True(t, ok)
	assert.Equal(t, "degraded", v)
	_, ok = client.get("home/desk/rssi")
	assert.False(t, ok, "raw samples are not published")
}

func TestReconnectAfterLoss(t *testing.T) {
	client := newFakeClient()
	p := newTestPublisher(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	<-client.connected

	p.OnEvent(events.Event{Type: events.SessionStopped})
	client.onLost(assert.AnError)

	select {
	case <-client.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect")
	}
}
