//go:build linux

package peer

import "tinygo.org/x/bluetooth"

// Adapter returns the Bluetooth adapter with the given BlueZ name.
func Adapter(name string) *bluetooth.Adapter {
	if name == "" || name == "hci0" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(name)
}
