package peer_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/proxlock/internal/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimLinkScript(t *testing.T) {
	c := &peer.SimConnector{Script: []int{0, -5, -10}}
	link, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer link.Close()

	require.True(t, link.Ready())

	for _, want := range []int{0, -5, -10, -10} {
		link.RequestSample()
		require.Eventually(t, func() bool {
			v, ok := link.LastSample()
			return ok && v == want
		}, time.Second, time.Millisecond)
	}

}

func TestSimLinkNotReadyDuringConnect(t *testing.T) {
	c := &peer.SimConnector{ConnectDelay: time.Hour, Script: []int{-1}}
	link, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer link.Close()

	assert.False(t, link.Ready())
	link.RequestSample()
	time.Sleep(10 * time.Millisecond)
	_, ok := link.LastSample()
	assert.False(t, ok)
}

func TestSimLinkCloseDiscardsInFlightRead(t *testing.T) {
	c := &peer.SimConnector{ReadDelay: 50 * time.Millisecond, Script: []int{-2}}
	link, err := c.Connect(context.Background())
	require.NoError(t, err)

	link.RequestSample()
	require.NoError(t, link.Close())

	_, ok := link.LastSample()
	assert.False(t, ok)
	assert.False(t, link.Ready())
}

func TestWalkAwayPath(t *testing.T) {
	path := peer.WalkAway(-1, -15, 10*time.Second)

	assert.InDelta(t, -1, path(0), 1e-9)
	assert.InDelta(t, -15, path(5*time.Second), 1e-9)
	assert.InDelta(t, -1, path(10*time.Second), 1e-9)
	assert.InDelta(t, -8, path(2500*time.Millisecond), 1e-9)
}
