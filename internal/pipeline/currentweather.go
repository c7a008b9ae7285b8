package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// CurrentWeatherSource is the raw current-conditions query.
type CurrentWeatherSource interface {
	CurrentWeather(ctx context.Context, lat, lon float64) ([]byte, error)
}

// ObservationWarehouse stores normalized point-in-time readings.
type ObservationWarehouse interface {
	InsertObservation(ctx context.Context, obs domain.CurrentObservation) error
}

// currentWeatherResponse is the provider's current-conditions payload shape.
type currentWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Deg   float64 `json:"deg"`
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Dt int64 `json:"dt"`
}

// CurrentWeatherAdapter polls current conditions for every coordinated
// station. Extraction goes through a read-through TTL cache, so back-to-back
// runs inside the TTL reuse the cached payload instead of hitting the
// provider; the cache changes latency and quota use only, never results.
type CurrentWeatherAdapter struct {
	source    CurrentWeatherSource
	stations  []domain.Station
	cache     domain.Cache
	cacheTTL  time.Duration
	warehouse ObservationWarehouse
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewCurrentWeatherAdapter creates the adapter. cache may be nil to disable
// read-through caching.
func NewCurrentWeatherAdapter(source CurrentWeatherSource, stations []domain.Station, cache domain.Cache, cacheTTL time.Duration, warehouse ObservationWarehouse, logger *slog.Logger, metrics *observability.Metrics) *CurrentWeatherAdapter {
	return &CurrentWeatherAdapter{
		source:    source,
		stations:  stations,
		cache:     cache,
		cacheTTL:  cacheTTL,
		warehouse: warehouse,
		logger:    logger,
		metrics:   metrics,
	}
}

func (a *CurrentWeatherAdapter) Name() string { return "current_weather" }

// Extract fetches one raw payload per coordinated station. A failed station
// is logged and skipped; the rest of the sweep continues.
func (a *CurrentWeatherAdapter) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for _, st := range a.stations {
		if !st.HasCoordinates() {
			continue
		}

		payload, err := a.fetch(ctx, st)
		if err != nil {
			a.logger.Warn("current weather fetch failed, skipping station",
				"station", st.Name, "error", err)
			continue
		}

		records = append(records, domain.RawRecord{
			Source:    a.Name(),
			Key:       st.CorrectedName,
			Payload:   payload,
			FetchedAt: domain.Now(),
		})
	}
	return records, nil
}

func (a *CurrentWeatherAdapter) fetch(ctx context.Context, st domain.Station) ([]byte, error) {
	cacheKey := a.Name() + ":" + st.Name

	if a.cache != nil {
		payload, ok, err := a.cache.Get(ctx, cacheKey)
		if err != nil {
			a.logger.Warn("cache read failed", "key", cacheKey, "error", err)
		} else if ok {
			a.metrics.PipelineCacheOps.WithLabelValues(a.Name(), "hit").Inc()
			return payload, nil
		}
		a.metrics.PipelineCacheOps.WithLabelValues(a.Name(), "miss").Inc()
	}

	payload, err := a.source.CurrentWeather(ctx, st.Latitude, st.Longitude)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, payload, a.cacheTTL); err != nil {
			a.logger.Warn("cache write failed", "key", cacheKey, "error", err)
		}
	}
	return payload, nil
}

// Transform parses the provider payload into a single normalized observation.
func (a *CurrentWeatherAdapter) Transform(_ context.Context, raw domain.RawRecord) ([]domain.CurrentObservation, error) {
	var resp currentWeatherResponse
	if err := json.Unmarshal(raw.Payload, &resp); err != nil {
		return nil, fmt.Errorf("parse current weather payload for %s: %w", raw.Key, err)
	}
	if resp.Dt == 0 {
		return nil, fmt.Errorf("current weather payload for %s has no observation time", raw.Key)
	}

	return []domain.CurrentObservation{{
		Location:   raw.Key,
		ObservedAt: time.Unix(resp.Dt, 0).UTC(),
		Temp:       resp.Main.Temp,
		Humidity:   resp.Main.Humidity,
		Pressure:   resp.Main.Pressure,
		WindDir:    domain.WindOrientation(resp.Wind.Deg),
		WindSpeed:  resp.Wind.Speed,
		Clouds:     resp.Clouds.All,
	}}, nil
}

func (a *CurrentWeatherAdapter) LoadToWarehouse(ctx context.Context, obs domain.CurrentObservation) error {
	return a.warehouse.InsertObservation(ctx, obs)
}
