package pipeline

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

// stubAdapter is a minimal Adapter[string] recording call order.
type stubAdapter struct {
	raws         []domain.RawRecord
	extractErr   error
	transformErr map[string]error
	loadErr      error
	events       *[]string
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Extract(_ context.Context) ([]domain.RawRecord, error) {
	return s.raws, s.extractErr
}

func (s *stubAdapter) Transform(_ context.Context, raw domain.RawRecord) ([]string, error) {
	*s.events = append(*s.events, "transform:"+raw.Key)
	if err := s.transformErr[raw.Key]; err != nil {
		return nil, err
	}
	return []string{raw.Key + "-a", raw.Key + "-b"}, nil
}

func (s *stubAdapter) LoadToWarehouse(_ context.Context, record string) error {
	*s.events = append(*s.events, "load:"+record)
	return s.loadErr
}

type stubDatalake struct {
	events *[]string
	stored []domain.RawRecord
	err    error
}

func (d *stubDatalake) Store(_ context.Context, record domain.RawRecord) error {
	*d.events = append(*d.events, "datalake:"+record.Key)
	if d.err != nil {
		return d.err
	}
	d.stored = append(d.stored, record)
	return nil
}

func raw(key string) domain.RawRecord {
	return domain.RawRecord{Source: "stub", Key: key, Payload: []byte("{}")}
}

func TestManager_DatalakeBeforeTransform(t *testing.T) {
	var events []string
	adapter := &stubAdapter{raws: []domain.RawRecord{raw("r1"), raw("r2")}, events: &events}
	datalake := &stubDatalake{events: &events}

	m := New[string](adapter, datalake, discardLogger(), observability.NewMetricsForTesting())
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Extracted: 2, Loaded: 4}, report)
	assert.Equal(t, []string{
		"datalake:r1", "transform:r1", "load:r1-a", "load:r1-b",
		"datalake:r2", "transform:r2", "load:r2-a", "load:r2-b",
	}, events)
}

func TestManager_TransformErrorSkipsRecord(t *testing.T) {
	var events []string
	adapter := &stubAdapter{
		raws:         []domain.RawRecord{raw("bad"), raw("good")},
		transformErr: map[string]error{"bad": errors.New("malformed")},
		events:       &events,
	}
	datalake := &stubDatalake{events: &events}

	m := New[string](adapter, datalake, discardLogger(), observability.NewMetricsForTesting())
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Extracted: 2, Loaded: 2, Skipped: 1}, report)
	// The failed record's raw copy still landed in the datalake.
	require.Len(t, datalake.stored, 2)
	assert.Equal(t, "bad", datalake.stored[0].Key)
}

func TestManager_WarehouseFailureStopsRun(t *testing.T) {
	var events []string
	adapter := &stubAdapter{
		raws:    []domain.RawRecord{raw("r1"), raw("r2")},
		loadErr: errors.New("warehouse down"),
		events:  &events,
	}

	m := New[string](adapter, nil, discardLogger(), observability.NewMetricsForTesting())
	_, err := m.Run(context.Background())
	require.Error(t, err)
	// The run stopped on the first load, never reaching r2.
	assert.Equal(t, []string{"transform:r1", "load:r1-a"}, events)
}

func TestManager_DatalakeFailureStopsRun(t *testing.T) {
	var events []string
	adapter := &stubAdapter{raws: []domain.RawRecord{raw("r1")}, events: &events}
	datalake := &stubDatalake{events: &events, err: errors.New("bucket gone")}

	m := New[string](adapter, datalake, discardLogger(), observability.NewMetricsForTesting())
	_, err := m.Run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, events, "transform:r1")
}

func TestManager_ExtractError(t *testing.T) {
	var events []string
	adapter := &stubAdapter{extractErr: errors.New("feed down"), events: &events}

	m := New[string](adapter, nil, discardLogger(), observability.NewMetricsForTesting())
	_, err := m.Run(context.Background())
	require.Error(t, err)
}

type stubCurrentSource struct {
	payload []byte
	err     error
	calls   int
}

func (s *stubCurrentSource) CurrentWeather(_ context.Context, _, _ float64) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

type observationRecorder struct {
	observations []domain.CurrentObservation
}

func (r *observationRecorder) InsertObservation(_ context.Context, obs domain.CurrentObservation) error {
	r.observations = append(r.observations, obs)
	return nil
}

func sydney() domain.Station {
	return domain.Station{Name: "Sydney", CorrectedName: "Sydney", Latitude: -33.87, Longitude: 151.21}
}

func TestCurrentWeather_ExtractPopulatesAndReusesCache(t *testing.T) {
	payload := []byte(`{"main":{"temp":22.5,"humidity":60,"pressure":1012},"wind":{"deg":90,"speed":5.1},"clouds":{"all":20},"dt":1704358800}`)
	source := &stubCurrentSource{payload: payload}
	cache := newMemoryCache()

	adapter := NewCurrentWeatherAdapter(source, []domain.Station{sydney()}, cache, time.Minute, nil,
		discardLogger(), observability.NewMetricsForTesting())

	records, err := adapter.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, source.calls)

	// Second sweep inside the TTL is served from the cache.
	records, err = adapter.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, payload, records[0].Payload)
}

func TestCurrentWeather_ExtractSkipsFailedStation(t *testing.T) {
	source := &stubCurrentSource{err: errors.New("provider down")}
	adapter := NewCurrentWeatherAdapter(source, []domain.Station{sydney()}, nil, 0, nil,
		discardLogger(), observability.NewMetricsForTesting())

	records, err := adapter.Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCurrentWeather_ExtractSkipsUncoordinated(t *testing.T) {
	source := &stubCurrentSource{}
	adapter := NewCurrentWeatherAdapter(source, []domain.Station{{Name: "NoCoords"}}, nil, 0, nil,
		discardLogger(), observability.NewMetricsForTesting())

	records, err := adapter.Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, source.calls)
}

func TestCurrentWeather_Transform(t *testing.T) {
	adapter := NewCurrentWeatherAdapter(nil, nil, nil, 0, nil,
		discardLogger(), observability.NewMetricsForTesting())

	payload := []byte(`{"main":{"temp":22.5,"humidity":60,"pressure":1012},"wind":{"deg":180,"speed":5.1},"clouds":{"all":20},"dt":1704358800}`)
	observations, err := adapter.Transform(context.Background(), domain.RawRecord{Key: "Sydney", Payload: payload})
	require.NoError(t, err)
	require.Len(t, observations, 1)

	obs := observations[0]
	assert.Equal(t, "Sydney", obs.Location)
	assert.Equal(t, time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), obs.ObservedAt)
	assert.Equal(t, 22.5, obs.Temp)
	assert.Equal(t, "S", obs.WindDir)
	assert.Equal(t, 20.0, obs.Clouds)
}

func TestCurrentWeather_TransformRejectsBadPayload(t *testing.T) {
	adapter := NewCurrentWeatherAdapter(nil, nil, nil, 0, nil,
		discardLogger(), observability.NewMetricsForTesting())

	_, err := adapter.Transform(context.Background(), domain.RawRecord{Key: "Sydney", Payload: []byte("not json")})
	require.Error(t, err)

	_, err = adapter.Transform(context.Background(), domain.RawRecord{Key: "Sydney", Payload: []byte("{}")})
	require.Error(t, err, "missing observation time is rejected")
}

func TestAirQuality_TransformFansOutPerPollutant(t *testing.T) {
	adapter := NewAirQualityAdapter(nil, nil, nil, discardLogger(), observability.NewMetricsForTesting())

	payload := []byte(`{"list":[{"dt":1704358800,"components":{"pm2_5":8.2,"co":201.9,"o3":68.7}}]}`)
	readings, err := adapter.Transform(context.Background(), domain.RawRecord{Key: "Sydney", Payload: payload})
	require.NoError(t, err)
	require.Len(t, readings, 3)

	// Stable alphabetical pollutant order.
	assert.Equal(t, "co", readings[0].Pollutant)
	assert.Equal(t, "o3", readings[1].Pollutant)
	assert.Equal(t, "pm2_5", readings[2].Pollutant)
	assert.Equal(t, 8.2, readings[2].Concentration)
	for _, r := range readings {
		assert.Equal(t, "Sydney", r.Location)
		assert.Equal(t, time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), r.ObservedAt)
	}
}

func TestAirQuality_TransformRejectsEmptyList(t *testing.T) {
	adapter := NewAirQualityAdapter(nil, nil, nil, discardLogger(), observability.NewMetricsForTesting())

	_, err := adapter.Transform(context.Background(), domain.RawRecord{Key: "Sydney", Payload: []byte(`{"list":[]}`)})
	require.Error(t, err)
}
