package config

import (
	"strings"
	"time"
)

// Distance presets map a name to a threshold in dBm.
var distancePresets = map[string]float64{
	"close":  0,
	"medium": -4,
	"far":    -10,
}

// Refresh presets map a name to a sampling interval.
var refreshPresets = map[string]time.Duration{
	"fast":   time.Second,
	"normal": 2 * time.Second,
	"slow":   5 * time.Second,
}

// DistanceThreshold resolves a distance preset name.
func DistanceThreshold(name string) (float64, bool) {
	v, ok := distancePresets[strings.ToLower(name)]
	return v, ok
}

// RefreshInterval resolves a refresh preset name.
func RefreshInterval(name string) (time.Duration, bool) {
	v, ok := refreshPresets[strings.ToLower(name)]
	return v, ok
}
