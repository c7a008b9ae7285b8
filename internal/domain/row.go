package domain

import "time"

// RainfallThreshold is the minimum rainfall, in millimetres, for a day to
// count as a rain day.
const RainfallThreshold = 1.0

// Station is a named observation location with resolved coordinates and
// collection progress. Name is the canonical query name taken from the
// reference dataset; CorrectedName is the human-readable form used for
// geocoding. A zero LastProcessed means the station has never been collected.
type Station struct {
	Name          string
	CorrectedName string
	Latitude      float64
	Longitude     float64
	LastProcessed time.Time
}

// HasCoordinates reports whether the station's position has been resolved.
// (0, 0) is open ocean south of Ghana, so it doubles as the unset marker.
func (s Station) HasCoordinates() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// CollectionWindow bounds a collection run. PeriodStart..PeriodEnd is the
// reference period; SearchHorizonEnd is the latest date any station cursor
// may reach. Immutable for the duration of a run.
type CollectionWindow struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	SearchHorizonEnd time.Time
}

// WeatherRow is the denormalized record for one (station, date): the day
// summary merged with the 09:00 and 15:00 snapshots. Evaporation and
// Sunshine exist in the reference schema but are not served by the source,
// so they stay nil. RainTomorrow is empty until backfilled from the next
// day's row.
type WeatherRow struct {
	Date     time.Time
	Location string

	MinTemp     float64
	MaxTemp     float64
	Rainfall    float64
	Evaporation *float64
	Sunshine    *float64

	WindGustDir   string
	WindGustSpeed float64

	WindDir9am   string
	WindDir3pm   string
	WindSpeed9am float64
	WindSpeed3pm float64
	Humidity9am  float64
	Humidity3pm  float64
	Pressure9am  float64
	Pressure3pm  float64
	Cloud9am     float64
	Cloud3pm     float64
	Temp9am      float64
	Temp3pm      float64

	RainToday    string
	RainTomorrow string
}

// RainLabel maps a rainfall amount to the Yes/No label used by the
// reference dataset.
func RainLabel(rainfall float64) string {
	if rainfall >= RainfallThreshold {
		return "Yes"
	}
	return "No"
}
