package registry

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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryStore struct {
	stations []domain.Station
	saves    int
}

func (m *memoryStore) Load(_ context.Context) ([]domain.Station, error) {
	return m.stations, nil
}

func (m *memoryStore) Save(_ context.Context, stations []domain.Station) error {
	m.stations = append([]domain.Station(nil), stations...)
	m.saves++
	return nil
}

type stubGeocoder struct {
	results map[string]domain.GeocodeResult
	err     error
	calls   []string
}

func (s *stubGeocoder) Geocode(_ context.Context, name, _ string) (domain.GeocodeResult, error) {
	s.calls = append(s.calls, name)
	if s.err != nil {
		return domain.GeocodeResult{}, s.err
	}
	return s.results[name], nil
}

func newRegistry(stations []domain.Station) (*Registry, *memoryStore) {
	store := &memoryStore{}
	return New(stations, store, discardLogger(), observability.NewMetricsForTesting()), store
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNewFromReference(t *testing.T) {
	locations := []string{"Sydney", "Melbourne", "Sydney", "Perth", "Sydney", "Melbourne"}

	stations, err := NewFromReference(locations)
	require.NoError(t, err)
	require.Len(t, stations, 3)

	// Ordered by descending observation count.
	assert.Equal(t, "Sydney", stations[0].Name)
	assert.Equal(t, "Melbourne", stations[1].Name)
	assert.Equal(t, "Perth", stations[2].Name)

	for _, st := range stations {
		assert.False(t, st.HasCoordinates())
		assert.True(t, st.LastProcessed.IsZero())
		assert.Equal(t, st.Name, st.CorrectedName)
	}
}

func TestNewFromReference_Empty(t *testing.T) {
	_, err := NewFromReference(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyReference))
}

func TestSplitCapitals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sydney", "Sydney"},
		{"AliceSprings", "Alice Springs"},
		{"MelbourneAirport", "Melbourne Airport"},
		{"PearceRAAF", "Pearce R A A F"},
		{"Alice Springs", "Alice Springs"}, // already split
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitCapitals(tt.in))
	}
}

func TestCorrectNames(t *testing.T) {
	r, _ := newRegistry([]domain.Station{
		{Name: "AliceSprings", CorrectedName: "AliceSprings"},
		{Name: "Nhil", CorrectedName: "Nhil"},
		{Name: "PearceRAAF", CorrectedName: "PearceRAAF"},
	})

	r.CorrectNames(nil)

	stations := r.Stations()
	assert.Equal(t, "Alice Springs", stations[0].CorrectedName)
	assert.Equal(t, "Nhill", stations[1].CorrectedName)
	assert.Equal(t, "Bullsbrook", stations[2].CorrectedName)

	// Idempotent: a second application changes nothing.
	r.CorrectNames(nil)
	assert.Equal(t, stations, r.Stations())
}

func TestGeocodeMissing(t *testing.T) {
	r, _ := newRegistry([]domain.Station{
		{Name: "Sydney", CorrectedName: "Sydney"},
		{Name: "Atlantis", CorrectedName: "Atlantis"},
		{Name: "Perth", CorrectedName: "Perth", Latitude: -31.95, Longitude: 115.86},
	})

	geocoder := &stubGeocoder{results: map[string]domain.GeocodeResult{
		"Sydney": {Latitude: -33.87, Longitude: 151.21, Found: true},
	}}

	r.GeocodeMissing(context.Background(), geocoder, "au")

	stations := r.Stations()
	assert.Equal(t, -33.87, stations[0].Latitude)
	assert.False(t, stations[1].HasCoordinates(), "no-match station stays uncoordinated")
	// Already-coordinated stations are not re-geocoded.
	assert.Equal(t, []string{"Sydney", "Atlantis"}, geocoder.calls)
}

func TestGeocodeMissing_ErrorIsIsolated(t *testing.T) {
	r, _ := newRegistry([]domain.Station{
		{Name: "Sydney", CorrectedName: "Sydney"},
		{Name: "Melbourne", CorrectedName: "Melbourne"},
	})

	geocoder := &stubGeocoder{err: errors.New("provider down")}
	r.GeocodeMissing(context.Background(), geocoder, "au")

	// Both stations were attempted despite the first failing.
	assert.Equal(t, []string{"Sydney", "Melbourne"}, geocoder.calls)
	for _, st := range r.Stations() {
		assert.False(t, st.HasCoordinates())
	}
}

func TestGeocodeMissing_RejectsCoordinateCollision(t *testing.T) {
	r, _ := newRegistry([]domain.Station{
		{Name: "Perth", CorrectedName: "Perth", Latitude: -31.95, Longitude: 115.86},
		{Name: "PerthAirport", CorrectedName: "Perth Airport"},
	})

	geocoder := &stubGeocoder{results: map[string]domain.GeocodeResult{
		"Perth Airport": {Latitude: -31.95, Longitude: 115.86, Found: true},
	}}

	r.GeocodeMissing(context.Background(), geocoder, "au")
	assert.False(t, r.Stations()[1].HasCoordinates())
}

func TestNextDue_PrefersStartedStationOverFresh(t *testing.T) {
	window := domain.CollectionWindow{
		PeriodStart:      date(t, "2024-01-01"),
		PeriodEnd:        date(t, "2024-01-03"),
		SearchHorizonEnd: date(t, "2024-01-05"),
	}

	r, _ := newRegistry([]domain.Station{
		{Name: "B", CorrectedName: "B", Latitude: 2, Longitude: 2},
		{Name: "A", CorrectedName: "A", Latitude: 1, Longitude: 1, LastProcessed: date(t, "2024-01-03")},
	})

	st, target, ok := r.NextDue(window)
	require.True(t, ok)
	assert.Equal(t, "A", st.Name)
	assert.Equal(t, "2024-01-04", domain.FormatDate(target))
}

func TestNextDue_EarliestProgressFirst(t *testing.T) {
	window := domain.CollectionWindow{
		PeriodStart:      date(t, "2024-01-01"),
		PeriodEnd:        date(t, "2024-01-03"),
		SearchHorizonEnd: date(t, "2024-01-10"),
	}

	r, _ := newRegistry([]domain.Station{
		{Name: "Later", CorrectedName: "Later", Latitude: 1, Longitude: 1, LastProcessed: date(t, "2024-01-06")},
		{Name: "Earlier", CorrectedName: "Earlier", Latitude: 2, Longitude: 2, LastProcessed: date(t, "2024-01-04")},
	})

	st, target, ok := r.NextDue(window)
	require.True(t, ok)
	assert.Equal(t, "Earlier", st.Name)
	assert.Equal(t, "2024-01-05", domain.FormatDate(target))
}

func TestNextDue_FreshStationStartsAfterPeriodEnd(t *testing.T) {
	window := domain.CollectionWindow{
		PeriodStart:      date(t, "2024-01-01"),
		PeriodEnd:        date(t, "2024-01-03"),
		SearchHorizonEnd: date(t, "2024-01-05"),
	}

	r, _ := newRegistry([]domain.Station{
		{Name: "Fresh", CorrectedName: "Fresh", Latitude: 1, Longitude: 1},
	})

	st, target, ok := r.NextDue(window)
	require.True(t, ok)
	assert.Equal(t, "Fresh", st.Name)
	assert.Equal(t, "2024-01-04", domain.FormatDate(target))
}

func TestNextDue_DoneWhenAllAtHorizon(t *testing.T) {
	window := domain.CollectionWindow{
		PeriodStart:      date(t, "2024-01-01"),
		PeriodEnd:        date(t, "2024-01-03"),
		SearchHorizonEnd: date(t, "2024-01-05"),
	}

	r, _ := newRegistry([]domain.Station{
		{Name: "Done", CorrectedName: "Done", Latitude: 1, Longitude: 1, LastProcessed: date(t, "2024-01-05")},
	})

	_, _, ok := r.NextDue(window)
	assert.False(t, ok)
}

func TestNextDue_SkipsUncoordinatedStations(t *testing.T) {
	window := domain.CollectionWindow{
		PeriodStart:      date(t, "2024-01-01"),
		PeriodEnd:        date(t, "2024-01-03"),
		SearchHorizonEnd: date(t, "2024-01-05"),
	}

	r, _ := newRegistry([]domain.Station{
		{Name: "NoCoords", CorrectedName: "NoCoords"},
	})

	_, _, ok := r.NextDue(window)
	assert.False(t, ok)
}

func TestAdvanceAndFlush(t *testing.T) {
	r, store := newRegistry([]domain.Station{
		{Name: "Sydney", CorrectedName: "Sydney", Latitude: 1, Longitude: 1},
	})

	require.NoError(t, r.Advance("Sydney", date(t, "2024-01-04")))
	require.Error(t, r.Advance("Unknown", date(t, "2024-01-04")))

	require.NoError(t, r.Flush(context.Background()))
	require.Equal(t, 1, store.saves)
	assert.Equal(t, "2024-01-04", domain.FormatDate(store.stations[0].LastProcessed))
}
