// Package mqtt publishes the lock state and smoothed signal strength to an
// MQTT broker as retained messages.
package mqtt

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/events"
	"codeberg.org/mutker/proxlock/internal/logger"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

const (
	ErrInvalidBroker = errors.ErrorCode("mqtt_invalid_broker")
	ErrConnect       = errors.ErrorCode("mqtt_connect_failed")
	ErrPublish       = errors.ErrorCode("mqtt_publish_failed")
)

const (
	defaultTopic     = "proxlock"
	defaultPort      = "1883"
	keepAlive        = 30
	publishTimeout   = 5 * time.Second
	minRetryInterval = time.Second
	maxRetryInterval = time.Minute
)

var errFactory = errors.New()

// Client is the subset of the paho client the publisher uses.
type Client interface {
	Connect(ctx context.Context, packet *paho.Connect) (*paho.Connack, error)
	Publish(ctx context.Context, packet *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(packet *paho.Disconnect) error
}

// ClientFactory builds a client on an established connection. onLost is
// called when the connection fails.
type ClientFactory func(conn net.Conn, clientID string, onLost func(error)) Client

func pahoFactory(conn net.Conn, clientID string, onLost func(error)) Client {
	return paho.NewClient(paho.ClientConfig{
		Conn:          conn,
		ClientID:      clientID,
		OnClientError: onLost,
		OnServerDisconnect: func(d *paho.Disconnect) {
			onLost(errFactory.WithData(ErrConnect, d.ReasonCode))
		},
	})
}

type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// Publisher keeps one broker connection and republishes the last known
// values after every reconnect.
type Publisher struct {
	addr     string
	topic    string
	clientID string
	log      logger.Logger

	dial      func(ctx context.Context, addr string) (net.Conn, error)
	newClient ClientFactory

	mu       sync.Mutex
	client   Client
	retained map[string]string
}

// New validates cfg and returns a publisher. It does not connect.
func New(cfg Config, log logger.Logger) (*Publisher, error) {
	addr, err := brokerAddr(cfg.Broker)
	if err != nil {
		return nil, err
	}

	topic := strings.Trim(cfg.Topic, "/")
	if topic == "" {
		topic = defaultTopic
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "proxlock-" + uuid.NewString()[:8]
	}

	var d net.Dialer
	return &Publisher{
		addr:      addr,
		topic:     topic,
		clientID:  clientID,
		log:       log,
		dial:      func(ctx context.Context, addr string) (net.Conn, error) { return d.DialContext(ctx, "tcp", addr) },
		newClient: pahoFactory,
		retained:  make(map[string]string),
	}, nil
}

// brokerAddr accepts host, host:port or tcp://host:port.
func brokerAddr(broker string) (string, error) {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		return "", errFactory.New(ErrInvalidBroker)
	}

	if strings.Contains(broker, "://") {
		u, err := url.Parse(broker)
		if err != nil {
			return "", errFactory.Wrap(ErrInvalidBroker, err)
		}
		if u.Scheme != "tcp" && u.Scheme != "mqtt" {
			return "", errFactory.WithData(ErrInvalidBroker, broker)
		}
		broker = u.Host
	}

	if _, _, err := net.SplitHostPort(broker); err != nil {
		broker = net.JoinHostPort(broker, defaultPort)
	}
	return broker, nil
}

// Run keeps the broker connection up until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	backoff := minRetryInterval

	for {
		lost, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn().Err(err).Str("broker", p.addr).Dur("retry_in", backoff).Msg("MQTT connection failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxRetryInterval)
			continue
		}
		backoff = minRetryInterval

		select {
		case <-ctx.Done():
			p.disconnect()
			return nil
		case err := <-lost:
			p.log.Warn().Err(err).Str("broker", p.addr).Msg("MQTT connection lost")
			p.setClient(nil)
		}
	}
}

func (p *Publisher) connect(ctx context.Context) (<-chan error, error) {
	conn, err := p.dial(ctx, p.addr)
	if err != nil {
		return nil, errFactory.Wrap(ErrConnect, err)
	}

	lost := make(chan error, 1)
	var once sync.Once
	client := p.newClient(conn, p.clientID, func(err error) {
		once.Do(func() { lost <- err })
	})

	ack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   p.clientID,
		CleanStart: true,
		KeepAlive:  keepAlive,
	})
	if err != nil {
		conn.Close()
		return nil, errFactory.Wrap(ErrConnect, err)
	}
	if ack != nil && ack.ReasonCode != 0 {
		conn.Close()
		return nil, errFactory.WithData(ErrConnect, ack.ReasonCode)
	}

	p.log.Info().Str("broker", p.addr).Str("topic", p.topic).Msg("MQTT connected")

	p.mu.Lock()
	p.client = client
	pending := make(map[string]string, len(p.retained))
	for k, v := range p.retained {
		pending[k] = v
	}
	p.mu.Unlock()

	for topic, payload := range pending {
		p.publish(ctx, client, topic, payload)
	}

	return lost, nil
}

func (p *Publisher) disconnect() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
}

func (p *Publisher) setClient(c Client) {
	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
}

type update struct {
	topic   string
	payload string
}

func updatesFor(ev events.Event) []update {
	switch ev.Type {
	case events.SessionStarted:
		return []update{{"session", "running"}, {"state", ev.State.String()}}
	case events.LockStateChanged:
		return []update{{"state", ev.State.String()}}
	case events.SampleSmoothed:
		return []update{{"rssi", strconv.FormatFloat(ev.Smoothed, 'f', 1, 64)}}
	case events.SessionStopped:
		return []update{{"session", "stopped"}}
	case events.Degraded:
		return []update{{"session", "degraded"}}
	case events.Recovered:
		return []update{{"session", "running"}}
	default:
		return nil
	}
}

// OnEvent publishes state changes. Values are kept while disconnected and
// sent on the next connect.
func (p *Publisher) OnEvent(ev events.Event) {
	updates := updatesFor(ev)
	if len(updates) == 0 {
		return
	}

	var client Client
	for _, u := range updates {
		client = p.store(u.topic, u.payload)
	}
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for _, u := range updates {
		p.publish(ctx, client, p.topic+"/"+u.topic, u.payload)
	}
}

// store records a retained value and returns the current client.
func (p *Publisher) store(topic, payload string) Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retained[p.topic+"/"+topic] = payload
	return p.client
}

func (p *Publisher) publish(ctx context.Context, client Client, topic, payload string) {
	_, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: []byte(payload),
		Retain:  true,
		QoS:     1,
	})
	if err != nil {
		p.log.Debug().Err(errFactory.Wrap(ErrPublish, err)).Str("topic", topic).Msg("MQTT publish failed")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
