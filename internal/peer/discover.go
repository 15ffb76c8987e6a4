package peer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Discovered is a device seen during a discovery scan.
type Discovered struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	RSSI    int    `json:"rssi"`
}

// Discover scans for duration and returns every device seen, strongest
// signal first. Later advertisements update a device's RSSI and fill in a
// missing name.
func Discover(ctx context.Context, adapter *bluetooth.Adapter, duration time.Duration) ([]Discovered, error) {
	if err := adapter.Enable(); err != nil {
		return nil, errFactory.Wrap(ErrAdapterEnable, err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	c := &BLEConnector{adapter: adapter}
	seen := newSeenSet()

	err := c.scan(scanCtx, 0, func(result bluetooth.ScanResult) bool {
		seen.add(result.Address.String(), result.LocalName(), int(result.RSSI))
		return false
	})
	if err != nil {
		return nil, err
	}

	return seen.sorted(), nil
}

type seenSet struct {
	mu      sync.Mutex
	devices map[string]*Discovered
}

func newSeenSet() *seenSet {
	return &seenSet{devices: make(map[string]*Discovered)}
}

func (s *seenSet) add(address, name string, rssi int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(address)
	d, ok := s.devices[key]
	if !ok {
		s.devices[key] = &Discovered{Address: key, Name: name, RSSI: rssi}
		return
	}
	d.RSSI = rssi
	if d.Name == "" {
		d.Name = name
	}
}

func (s *seenSet) sorted() []Discovered {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Discovered, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})

	return out
}
