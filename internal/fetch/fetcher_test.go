package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	summary     domain.DaySummary
	summaryErr  error
	snapshots   map[string]domain.Snapshot
	snapshotErr map[string]error
	calls       []string
}

func (s *stubSource) DailyAggregate(_ context.Context, _, _ float64, _ time.Time) (domain.DaySummary, error) {
	s.calls = append(s.calls, "daily")
	return s.summary, s.summaryErr
}

func (s *stubSource) TimestampSnapshot(_ context.Context, _, _ float64, at time.Time) (domain.Snapshot, error) {
	key := at.Format("1504")
	s.calls = append(s.calls, key)
	if err := s.snapshotErr[key]; err != nil {
		return domain.Snapshot{}, err
	}
	return s.snapshots[key], nil
}

func newFetcher(source domain.WeatherSource) *Fetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(source, logger, observability.NewMetricsForTesting())
}

func testStation() domain.Station {
	return domain.Station{
		Name:          "SydneyAirport",
		CorrectedName: "Sydney Airport",
		Latitude:      -33.95,
		Longitude:     151.18,
	}
}

func TestFetch_MergesAllThreeQueries(t *testing.T) {
	day, err := domain.ParseDate("2024-01-04")
	require.NoError(t, err)

	source := &stubSource{
		summary: domain.DaySummary{
			MinTemp:       17.2,
			MaxTemp:       29.8,
			Rainfall:      4.6,
			WindGustDeg:   90,
			WindGustSpeed: 52,
		},
		snapshots: map[string]domain.Snapshot{
			"0900": {WindDeg: 0, WindSpeed: 11, Humidity: 71, Pressure: 1013.2, Clouds: 40, Temp: 21.5},
			"1500": {WindDeg: 180, WindSpeed: 19, Humidity: 48, Pressure: 1009.8, Clouds: 75, Temp: 28.9},
		},
	}

	row, err := newFetcher(source).Fetch(context.Background(), testStation(), day)
	require.NoError(t, err)

	assert.Equal(t, []string{"daily", "0900", "1500"}, source.calls)
	assert.Equal(t, "Sydney Airport", row.Location)
	assert.Equal(t, day, row.Date)

	assert.Equal(t, 17.2, row.MinTemp)
	assert.Equal(t, 29.8, row.MaxTemp)
	assert.Equal(t, 4.6, row.Rainfall)
	assert.Equal(t, "E", row.WindGustDir)
	assert.Equal(t, 52.0, row.WindGustSpeed)

	assert.Equal(t, "N", row.WindDir9am)
	assert.Equal(t, "S", row.WindDir3pm)
	assert.Equal(t, 11.0, row.WindSpeed9am)
	assert.Equal(t, 19.0, row.WindSpeed3pm)
	assert.Equal(t, 71.0, row.Humidity9am)
	assert.Equal(t, 48.0, row.Humidity3pm)
	assert.Equal(t, 1013.2, row.Pressure9am)
	assert.Equal(t, 1009.8, row.Pressure3pm)
	assert.Equal(t, 40.0, row.Cloud9am)
	assert.Equal(t, 75.0, row.Cloud3pm)
	assert.Equal(t, 21.5, row.Temp9am)
	assert.Equal(t, 28.9, row.Temp3pm)

	assert.Equal(t, "Yes", row.RainToday)
	assert.Empty(t, row.RainTomorrow, "rain tomorrow is backfilled later, never at fetch time")
	assert.Nil(t, row.Evaporation)
	assert.Nil(t, row.Sunshine)
}

func TestFetch_RainTodayBelowThreshold(t *testing.T) {
	day, err := domain.ParseDate("2024-01-04")
	require.NoError(t, err)

	source := &stubSource{
		summary:   domain.DaySummary{Rainfall: 0.8},
		snapshots: map[string]domain.Snapshot{},
	}

	row, err := newFetcher(source).Fetch(context.Background(), testStation(), day)
	require.NoError(t, err)
	assert.Equal(t, "No", row.RainToday)
}

func TestFetch_NoPartialRowOnAggregateFailure(t *testing.T) {
	day, err := domain.ParseDate("2024-01-04")
	require.NoError(t, err)

	source := &stubSource{summaryErr: domain.ErrSourceUnavailable}

	row, err := newFetcher(source).Fetch(context.Background(), testStation(), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Equal(t, domain.WeatherRow{}, row)
	// The snapshot queries are never issued once the aggregate fails.
	assert.Equal(t, []string{"daily"}, source.calls)
}

func TestFetch_NoPartialRowOnSnapshotFailure(t *testing.T) {
	day, err := domain.ParseDate("2024-01-04")
	require.NoError(t, err)

	source := &stubSource{
		snapshots:   map[string]domain.Snapshot{"0900": {Temp: 20}},
		snapshotErr: map[string]error{"1500": domain.ErrSourceUnavailable},
	}

	row, err := newFetcher(source).Fetch(context.Background(), testStation(), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Equal(t, domain.WeatherRow{}, row)
}

func TestFetch_RejectsUncoordinatedStation(t *testing.T) {
	day, err := domain.ParseDate("2024-01-04")
	require.NoError(t, err)

	source := &stubSource{}
	_, err = newFetcher(source).Fetch(context.Background(), domain.Station{Name: "NoCoords"}, day)
	require.Error(t, err)
	assert.Empty(t, source.calls, "no query is issued for a station without coordinates")
}
