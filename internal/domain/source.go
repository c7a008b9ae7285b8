package domain

import (
	"context"
	"time"
)

// DaySummary is the parsed daily aggregate for one (coordinate, date).
type DaySummary struct {
	Date          time.Time
	MinTemp       float64
	MaxTemp       float64
	Rainfall      float64
	WindGustDeg   float64
	WindGustSpeed float64
}

// Snapshot is the parsed weather state at a single instant.
type Snapshot struct {
	WindDeg   float64
	WindSpeed float64
	Humidity  float64
	Pressure  float64
	Clouds    float64
	Temp      float64
}

// WeatherSource is the external weather capability. Implementations parse
// and validate the provider's responses at the boundary and report any
// transport or shape failure as ErrSourceUnavailable.
type WeatherSource interface {
	DailyAggregate(ctx context.Context, lat, lon float64, date time.Time) (DaySummary, error)
	TimestampSnapshot(ctx context.Context, lat, lon float64, at time.Time) (Snapshot, error)
}
