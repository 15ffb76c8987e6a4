//go:build !linux

package peer

import "tinygo.org/x/bluetooth"

// Adapter returns the system Bluetooth adapter. Named adapters are only
// supported on Linux.
func Adapter(_ string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
