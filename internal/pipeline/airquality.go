package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// AirPollutionSource is the raw air-pollution query.
type AirPollutionSource interface {
	AirPollution(ctx context.Context, lat, lon float64) ([]byte, error)
}

// ReadingWarehouse stores per-pollutant concentration readings.
type ReadingWarehouse interface {
	InsertReading(ctx context.Context, reading domain.AirQualityReading) error
}

// airPollutionResponse is the provider's air-pollution payload shape: a list
// with a single element carrying a pollutant-to-concentration map.
type airPollutionResponse struct {
	List []struct {
		Dt         int64              `json:"dt"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// AirQualityAdapter sweeps coordinated stations for current air pollution.
// One raw payload fans out to one warehouse reading per pollutant.
type AirQualityAdapter struct {
	source    AirPollutionSource
	stations  []domain.Station
	warehouse ReadingWarehouse
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAirQualityAdapter creates the adapter.
func NewAirQualityAdapter(source AirPollutionSource, stations []domain.Station, warehouse ReadingWarehouse, logger *slog.Logger, metrics *observability.Metrics) *AirQualityAdapter {
	return &AirQualityAdapter{
		source:    source,
		stations:  stations,
		warehouse: warehouse,
		logger:    logger,
		metrics:   metrics,
	}
}

func (a *AirQualityAdapter) Name() string { return "air_quality" }

// Extract fetches one raw payload per coordinated station, skipping stations
// whose fetch fails.
func (a *AirQualityAdapter) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for _, st := range a.stations {
		if !st.HasCoordinates() {
			continue
		}

		payload, err := a.source.AirPollution(ctx, st.Latitude, st.Longitude)
		if err != nil {
			a.logger.Warn("air pollution fetch failed, skipping station",
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

// Transform fans the payload's component map out to one reading per
// pollutant, in stable pollutant order.
func (a *AirQualityAdapter) Transform(_ context.Context, raw domain.RawRecord) ([]domain.AirQualityReading, error) {
	var resp airPollutionResponse
	if err := json.Unmarshal(raw.Payload, &resp); err != nil {
		return nil, fmt.Errorf("parse air pollution payload for %s: %w", raw.Key, err)
	}
	if len(resp.List) == 0 {
		return nil, fmt.Errorf("air pollution payload for %s is empty", raw.Key)
	}

	entry := resp.List[0]
	observedAt := time.Unix(entry.Dt, 0).UTC()

	pollutants := make([]string, 0, len(entry.Components))
	for name := range entry.Components {
		pollutants = append(pollutants, name)
	}
	sort.Strings(pollutants)

	readings := make([]domain.AirQualityReading, 0, len(pollutants))
	for _, name := range pollutants {
		readings = append(readings, domain.AirQualityReading{
			Location:      raw.Key,
			ObservedAt:    observedAt,
			Pollutant:     name,
			Concentration: entry.Components[name],
		})
	}
	return readings, nil
}

func (a *AirQualityAdapter) LoadToWarehouse(ctx context.Context, reading domain.AirQualityReading) error {
	return a.warehouse.InsertReading(ctx, reading)
}
