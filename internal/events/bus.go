package events

import (
	"sync"
	"time"

	"codeberg.org/mutker/proxlock/internal/logger"
)

const defaultQueueSize = 64

// DropFunc is called when a listener's queue is full and an event is dropped.
type DropFunc func(name string, ev Event)

type subscription struct {
	name     string
	listener Listener
	queue    chan Event
	done     chan struct{}
}

// Bus fans events out to subscribed listeners. Publish never blocks: each
// listener is served by its own goroutine and a full queue drops the event.
type Bus struct {
	mu        sync.RWMutex
	subs      []*subscription
	closed    bool
	queueSize int
	onDrop    DropFunc
	now       func() time.Time
	logger    logger.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithQueueSize sets the per-listener queue length.
func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithDropHandler registers a callback for dropped events.
func WithDropHandler(fn DropFunc) BusOption {
	return func(b *Bus) {
		b.onDrop = fn
	}
}

// WithLogger sets the bus logger.
func WithLogger(log logger.Logger) BusOption {
	return func(b *Bus) {
		b.logger = log
	}
}

// NewBus creates an empty Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		queueSize: defaultQueueSize,
		now:       time.Now,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener under a name used in logs and drop
// accounting. The returned function unsubscribes and waits for the
// listener's goroutine to drain.
func (b *Bus) Subscribe(name string, l Listener) func() {
	sub := &subscription{
		name:     name,
		listener: l,
		queue:    make(chan Event, b.queueSize),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go sub.serve()

	var once sync.Once
	return func() {
		once.Do(func() {
			if b.remove(sub) {
				close(sub.queue)
			}
			<-sub.done
		})
	}
}

// Publish stamps the event time if unset and enqueues it for every listener.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.queue <- ev:
		default:
			b.logger.Debug().
				Str("listener", sub.name).
				Str("event", string(ev.Type)).
				Msg("Listener queue full, event dropped")
			if b.onDrop != nil {
				b.onDrop(sub.name, ev)
			}
		}
	}
}

// Close unsubscribes everything and waits for listeners to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.queue)
	}
	for _, sub := range subs {
		<-sub.done
	}
}

func (b *Bus) remove(target *subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *subscription) serve() {
	defer close(s.done)
	for ev := range s.queue {
		s.listener.OnEvent(ev)
	}
}
