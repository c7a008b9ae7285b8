// Package fetch assembles one denormalized weather row per (station, date)
// from the three source queries.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// Snapshot times, local wall clock, matching the reference dataset's 9am
// and 3pm observation columns.
const (
	morningSnapshot   = "0900"
	afternoonSnapshot = "1500"
)

// Fetcher merges a daily aggregate and two timestamp snapshots into a
// single WeatherRow. A failure in any of the three queries fails the whole
// fetch with no partial row, so the rain backfill logic never sees a
// half-built day.
type Fetcher struct {
	source  domain.WeatherSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Fetcher over the given weather source.
func New(source domain.WeatherSource, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{source: source, logger: logger, metrics: metrics}
}

// Fetch collects the denormalized row for one station-date. The station's
// coordinates must already be resolved; stations are geocoded once up
// front, never per fetch.
func (f *Fetcher) Fetch(ctx context.Context, station domain.Station, date time.Time) (domain.WeatherRow, error) {
	if !station.HasCoordinates() {
		return domain.WeatherRow{}, fmt.Errorf("station %s has no coordinates", station.Name)
	}

	f.metrics.FetchRequests.WithLabelValues("daily").Inc()
	summary, err := f.source.DailyAggregate(ctx, station.Latitude, station.Longitude, date)
	if err != nil {
		return domain.WeatherRow{}, fmt.Errorf("station %s %s: %w", station.Name, domain.FormatDate(date), err)
	}

	morning, err := f.snapshot(ctx, station, date, morningSnapshot, "snapshot_9am")
	if err != nil {
		return domain.WeatherRow{}, err
	}
	afternoon, err := f.snapshot(ctx, station, date, afternoonSnapshot, "snapshot_3pm")
	if err != nil {
		return domain.WeatherRow{}, err
	}

	row := domain.WeatherRow{
		Date:     date,
		Location: station.CorrectedName,

		MinTemp:       summary.MinTemp,
		MaxTemp:       summary.MaxTemp,
		Rainfall:      summary.Rainfall,
		WindGustDir:   domain.WindOrientation(summary.WindGustDeg),
		WindGustSpeed: summary.WindGustSpeed,

		WindDir9am:   domain.WindOrientation(morning.WindDeg),
		WindDir3pm:   domain.WindOrientation(afternoon.WindDeg),
		WindSpeed9am: morning.WindSpeed,
		WindSpeed3pm: afternoon.WindSpeed,
		Humidity9am:  morning.Humidity,
		Humidity3pm:  afternoon.Humidity,
		Pressure9am:  morning.Pressure,
		Pressure3pm:  afternoon.Pressure,
		Cloud9am:     morning.Clouds,
		Cloud3pm:     afternoon.Clouds,
		Temp9am:      morning.Temp,
		Temp3pm:      afternoon.Temp,

		RainToday: domain.RainLabel(summary.Rainfall),
	}

	f.metrics.RowsCollected.Inc()
	f.logger.Debug("row collected",
		"station", station.Name, "date", domain.FormatDate(date), "rain_today", row.RainToday)
	return row, nil
}

func (f *Fetcher) snapshot(ctx context.Context, station domain.Station, date time.Time, hhmm, metric string) (domain.Snapshot, error) {
	at, err := domain.InstantAt(date, hhmm)
	if err != nil {
		return domain.Snapshot{}, err
	}

	f.metrics.FetchRequests.WithLabelValues(metric).Inc()
	snap, err := f.source.TimestampSnapshot(ctx, station.Latitude, station.Longitude, at)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("station %s %s %s: %w", station.Name, domain.FormatDate(date), hhmm, err)
	}
	return snap, nil
}
