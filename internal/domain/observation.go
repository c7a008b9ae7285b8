package domain

import "time"

// RawRecord is an unprocessed payload pulled from an external feed, kept
// byte-for-byte for the datalake so failed transforms can be replayed.
type RawRecord struct {
	Source    string
	Key       string
	Payload   []byte
	FetchedAt time.Time
}

// CurrentObservation is a normalized point-in-time weather reading used by
// the current-weather pipeline. Uniqueness is (location, observed_at).
type CurrentObservation struct {
	Location   string
	ObservedAt time.Time
	Temp       float64
	Humidity   float64
	Pressure   float64
	WindDir    string
	WindSpeed  float64
	Clouds     float64
}

// AirQualityReading is one pollutant concentration from the air-pollution
// pipeline. A single raw response fans out to one reading per pollutant.
// Uniqueness is (location, observed_at, pollutant).
type AirQualityReading struct {
	Location      string
	ObservedAt    time.Time
	Pollutant     string
	Concentration float64
}
