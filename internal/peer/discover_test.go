package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetSortsStrongestFirst(t *testing.T) {
	s := newSeenSet()
	s.add("aa:bb:cc:00:00:01", "", -70)
	s.add("AA:BB:CC:00:00:02", "Phone", -40)
	s.add("AA:BB:CC:00:00:03", "Watch", -55)
	s.add("AA:BB:CC:00:00:01", "Tag", -60)

	got := s.sorted()

	assert.Equal(t, []Discovered{
		{Address: "AA:BB:CC:00:00:02", Name: "Phone", RSSI: -40},
		{Address: "AA:BB:CC:00:00:03", Name: "Watch", RSSI: -55},
		{Address: "AA:BB:CC:00:00:01", Name: "Tag", RSSI: -60},
	}, got)
}

func TestSeenSetKeepsFirstName(t *testing.T) {
	s := newSeenSet()
	s.add("AA:BB:CC:00:00:01", "Phone", -50)
	s.add("AA:BB:CC:00:00:01", "", -51)

	got := s.sorted()

	assert.Len(t, got, 1)
	assert.Equal(t, "Phone", got[0].Name)
	assert.Equal(t, -51, got[0].RSSI)
}

func TestSeenSetTieBreaksByAddress(t *testing.T) {
	s := newSeenSet()
	s.add("AA:BB:CC:00:00:09", "", -50)
	s.add("AA:BB:CC:00:00:01", "", -50)

	got := s.sorted()

	assert.Equal(t, "AA:BB:CC:00:00:01", got[0].Address)
}
