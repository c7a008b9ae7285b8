// Package pipeline runs auxiliary feeds through a generic
// extract/datalake/transform/warehouse loop. The collector owns the
// denormalized reference rows; pipelines handle everything else (current
// weather, air quality) behind one adapter contract.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// Adapter binds one concrete feed to the Manager. Transform returns a slice
// so an adapter can fan one raw payload out to several warehouse records.
type Adapter[R any] interface {
	Name() string
	Extract(ctx context.Context) ([]domain.RawRecord, error)
	Transform(ctx context.Context, raw domain.RawRecord) ([]R, error)
	LoadToWarehouse(ctx context.Context, record R) error
}

// Datalake keeps raw payloads byte-for-byte. Raw data is written before any
// transform runs, so a failed transform can always be replayed.
type Datalake interface {
	Store(ctx context.Context, record domain.RawRecord) error
}

// Report summarizes one pipeline run.
type Report struct {
	Extracted int
	Loaded    int
	Skipped   int
}

// Manager orchestrates one adapter's extract-transform-load cycle. A
// transform failure skips that record and continues; datalake and warehouse
// failures stop the run, since continuing past either would lose data.
type Manager[R any] struct {
	adapter  Adapter[R]
	datalake Datalake
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Manager for the given adapter. datalake may be nil when no
// object store is configured; raw archival is then skipped.
func New[R any](adapter Adapter[R], datalake Datalake, logger *slog.Logger, metrics *observability.Metrics) *Manager[R] {
	return &Manager[R]{adapter: adapter, datalake: datalake, logger: logger, metrics: metrics}
}

// Run executes one full cycle over the adapter's extract output.
func (m *Manager[R]) Run(ctx context.Context) (Report, error) {
	name := m.adapter.Name()
	report := Report{}

	raws, err := m.adapter.Extract(ctx)
	if err != nil {
		return report, fmt.Errorf("pipeline %s: extract: %w", name, err)
	}
	report.Extracted = len(raws)
	m.metrics.PipelineRecords.WithLabelValues(name, "extracted").Add(float64(len(raws)))

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if m.datalake != nil {
			if err := m.datalake.Store(ctx, raw); err != nil {
				return report, fmt.Errorf("pipeline %s: datalake store %s: %w", name, raw.Key, err)
			}
			m.metrics.PipelineRecords.WithLabelValues(name, "datalake").Inc()
		}

		records, err := m.adapter.Transform(ctx, raw)
		if err != nil {
			report.Skipped++
			m.metrics.TransformErrors.WithLabelValues(name).Inc()
			m.logger.Warn("transform failed, skipping record",
				"pipeline", name, "key", raw.Key, "error", err)
			continue
		}

		for _, record := range records {
			if err := m.adapter.LoadToWarehouse(ctx, record); err != nil {
				return report, fmt.Errorf("pipeline %s: warehouse load %s: %w", name, raw.Key, err)
			}
			report.Loaded++
			m.metrics.PipelineRecords.WithLabelValues(name, "warehouse").Inc()
		}
	}

	m.logger.Info("pipeline run finished",
		"pipeline", name,
		"extracted", report.Extracted,
		"loaded", report.Loaded,
		"skipped", report.Skipped)
	return report, nil
}
