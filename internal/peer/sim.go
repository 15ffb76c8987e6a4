package peer

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Path returns the simulated peer's true signal strength at elapsed time.
type Path func(elapsed time.Duration) float64

// WalkAway is the demo path: the peer sits next to the host, walks away,
// stays away and comes back, repeating every period.
func WalkAway(near, far float64, period time.Duration) Path {
	return func(elapsed time.Duration) float64 {
		phase := math.Mod(elapsed.Seconds(), period.Seconds()) / period.Seconds()
		// Raised cosine: near at phase 0, far at phase 0.5.
		mix := (1 - math.Cos(2*math.Pi*phase)) / 2
		return near + (far-near)*mix
	}
}

// SimConnector produces simulated links for demo mode and tests.
type SimConnector struct {
	// ConnectDelay is how long links stay not-ready after Connect.
	ConnectDelay time.Duration
	// ReadDelay is how long each read takes to complete.
	ReadDelay time.Duration
	// Path drives the readings when Script is empty.
	Path Path
	// Noise is the peak amplitude of uniform noise added to Path, in dBm.
	Noise float64
	// Script, when set, is replayed one value per completed read; the last
	// value repeats once exhausted.
	Script []int
	// Drop makes every read fail to complete, as a peer that never answers.
	Drop bool
	// ReadTimeout is passed to the link's mailbox.
	ReadTimeout time.Duration
}

// NewDemoConnector returns the connector used by --demo.
func NewDemoConnector(readTimeout time.Duration) *SimConnector {
	return &SimConnector{
		ConnectDelay: 1500 * time.Millisecond,
		ReadDelay:    300 * time.Millisecond,
		Path:         WalkAway(-1, -14, 90*time.Second),
		Noise:        3,
		ReadTimeout:  readTimeout,
	}
}

func (c *SimConnector) Connect(_ context.Context) (Link, error) {
	l := &simLink{
		cfg:     c,
		mailbox: NewMailbox(c.ReadTimeout),
		start:   time.Now(),
		closed:  make(chan struct{}),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return l, nil
}

type simLink struct {
	cfg     *SimConnector
	mailbox *Mailbox
	start   time.Time
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	mu     sync.Mutex
	cursor int
	rnd    *rand.Rand
}

func (l *simLink) Ready() bool {
	select {
	case <-l.closed:
		return false
	default:
	}
	return time.Since(l.start) >= l.cfg.ConnectDelay
}

func (l *simLink) RequestSample() {
	if !l.Ready() {
		return
	}

	seq, ok := l.mailbox.Begin()
	if !ok {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		if l.cfg.ReadDelay > 0 {
			timer := time.NewTimer(l.cfg.ReadDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-l.closed:
				return
			}
		}

		if l.cfg.Drop {
			return
		}
		l.mailbox.Complete(seq, l.next())
	}()
}

func (l *simLink) next() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.cfg.Script) > 0 {
		idx := l.cursor
		if idx >= len(l.cfg.Script) {
			idx = len(l.cfg.Script) - 1
		} else {
			l.cursor++
		}
		return l.cfg.Script[idx]
	}

	v := 0.0
	if l.cfg.Path != nil {
		v = l.cfg.Path(time.Since(l.start))
	}
	v += (l.rnd.Float64()*2 - 1) * l.cfg.Noise

	return int(math.Round(v))
}

func (l *simLink) LastSample() (int, bool) {
	return l.mailbox.Last()
}

func (l *simLink) Close() error {
	l.once.Do(func() {
		close(l.closed)
		l.mailbox.Close()
	})
	l.wg.Wait()
	return nil
}
