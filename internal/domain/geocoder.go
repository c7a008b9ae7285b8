package domain

import "context"

// GeocodeResult is a resolved station position. Found is false when the
// provider had no match for the name; that is a per-station outcome the
// caller consumes explicitly, not an error.
type GeocodeResult struct {
	Latitude  float64
	Longitude float64
	Found     bool
}

// Geocoder resolves a place name within a country to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, name, country string) (GeocodeResult, error)
}
