// Package peer provides the connection to the paired device whose signal
// strength is tracked.
package peer

import "context"

// Link is a connection handle to one peer.
type Link interface {
	// Ready reports whether the connection has been established.
	Ready() bool
	// RequestSample starts an asynchronous signal-strength read unless one
	// is already outstanding. It never blocks.
	RequestSample()
	// LastSample returns the most recent completed reading in dBm.
	LastSample() (int, bool)
	// Close releases the connection. Readings completing afterwards are
	// discarded.
	Close() error
}

// Connector opens links. Connect returns immediately; the link becomes
// Ready once connection setup completes in the background.
type Connector interface {
	Connect(ctx context.Context) (Link, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Link, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Link, error) {
	return f(ctx)
}
