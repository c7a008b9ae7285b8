package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// collector and the generic pipelines.
type Metrics struct {
	FetchRequests    *prometheus.CounterVec // labels: query={daily,snapshot_9am,snapshot_3pm}
	FetchFailures    prometheus.Counter
	RowsCollected    prometheus.Counter
	RowsUpserted     prometheus.Counter
	DuplicateRows    prometheus.Counter
	RunsCompleted    *prometheus.CounterVec // labels: reason
	RunDuration      prometheus.Histogram
	CollectorRunning prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={resolved,not_found,error}

	// Generic pipeline metrics.
	PipelineRecords  *prometheus.CounterVec // labels: pipeline, stage={extracted,datalake,warehouse}
	TransformErrors  *prometheus.CounterVec // labels: pipeline
	PipelineCacheOps *prometheus.CounterVec // labels: pipeline, result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchFailures,
		m.RowsCollected,
		m.RowsUpserted,
		m.DuplicateRows,
		m.RunsCompleted,
		m.RunDuration,
		m.CollectorRunning,
		m.GeocodeRequests,
		m.PipelineRecords,
		m.TransformErrors,
		m.PipelineCacheOps,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_requests_total",
			Help:      "Weather source queries issued, by query kind.",
		}, []string{"query"}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "fetch_failures_total",
			Help:      "Fetch units aborted because the source was unavailable.",
		}),
		RowsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "rows_collected_total",
			Help:      "Denormalized rows assembled from the three source queries.",
		}),
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "rows_upserted_total",
			Help:      "Rows newly inserted into the warehouse.",
		}),
		DuplicateRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "duplicate_rows_total",
			Help:      "Upserts skipped because the (date, location) row already existed.",
		}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "runs_completed_total",
			Help:      "Collection runs finished, by stop reason.",
		}, []string{"reason"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a bounded collection run.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "collector_running",
			Help:      "1 while a collection run is active.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by outcome.",
		}, []string{"outcome"}),
		PipelineRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_records_total",
			Help:      "Generic pipeline records by pipeline and stage.",
		}, []string{"pipeline", "stage"}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_transform_errors_total",
			Help:      "Records skipped because their transform failed.",
		}, []string{"pipeline"}),
		PipelineCacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_cache_total",
			Help:      "Pipeline extract cache lookups by result.",
		}, []string{"pipeline", "result"}),
	}
}
