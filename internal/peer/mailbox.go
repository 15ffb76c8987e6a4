package peer

import (
	"sync"
	"time"
)

// Mailbox is the single slot shared between a link's read-completion
// callback and the sampling loop. It holds the last completed reading and
// the at-most-one outstanding request, both under one mutex.
//
// Each request gets a sequence number; a completion is accepted only for
// the current outstanding request, so a read abandoned by timeout or by
// Close cannot overwrite newer state.
type Mailbox struct {
	mu        sync.Mutex
	seq       uint64
	pending   bool
	requested time.Time
	value     int
	has       bool
	closed    bool

	timeout time.Duration
	now     func() time.Time
}

// NewMailbox creates a mailbox. A positive timeout abandons an outstanding
// request older than timeout on the next Begin; zero waits forever.
func NewMailbox(timeout time.Duration) *Mailbox {
	return &Mailbox{
		timeout: timeout,
		now:     time.Now,
	}
}

// Begin claims the request slot. It returns false while a request is
// outstanding and not yet expired, or after Close.
func (m *Mailbox) Begin() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, false
	}

	now := m.now()
	if m.pending && (m.timeout <= 0 || now.Sub(m.requested) < m.timeout) {
		return 0, false
	}

	m.seq++
	m.pending = true
	m.requested = now

	return m.seq, true
}

// Complete records a reading for request seq and frees the slot. It
// reports whether the reading was accepted.
func (m *Mailbox) Complete(seq uint64, rssi int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.pending || seq != m.seq {
		return false
	}

	m.value = rssi
	m.has = true
	m.pending = false

	return true
}

// Fail frees the slot for request seq without recording a reading.
func (m *Mailbox) Fail(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending && seq == m.seq {
		m.pending = false
	}
}

// Last returns the most recent accepted reading.
func (m *Mailbox) Last() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.has
}

// Pending reports whether a request is outstanding.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Close makes the mailbox discard all further completions and requests.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = false
}
