package domain

import "math"

// compassLabels are the 16 cardinal and intercardinal wind directions in
// clockwise order starting at north.
var compassLabels = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindOrientation maps a compass bearing in degrees to one of the 16
// cardinal labels. Each label owns a 22.5° sector centred on its nominal
// bearing, so N covers [348.75, 360) and [0, 11.25). Any finite input is
// accepted; bearings outside [0, 360) are normalized first.
func WindOrientation(bearing float64) string {
	deg := math.Mod(bearing, 360)
	if deg < 0 {
		deg += 360
	}
	sector := int((deg+11.25)/22.5) % 16
	return compassLabels[sector]
}
