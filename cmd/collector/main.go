// Command collector ingests Australian weather observations: bounded
// backfill runs against the reference period, station table management, and
// the auxiliary current-weather and air-quality pipelines.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/openweather"
	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/postgres"
	"github.com/couchcryptid/aussie-weather-etl/internal/config"
	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "collector",
		Short:         "Incremental multi-source weather collector",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Local development convenience; a missing .env is fine.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(
		newCollectCmd(),
		newWatchCmd(),
		newStationsCmd(),
		newPipelineCmd(),
	)
	return root
}

// app bundles the wiring every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	store domain.StationStore
	sink  domain.Sink

	warehouse *postgres.Warehouse // nil when file-backed
	sinkClose func() error
}

// newApp loads config and observability. Storage is attached separately so
// read-only commands do not open the results sink.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
	}, nil
}

// openStationStore attaches just the station table.
func (a *app) openStationStore(ctx context.Context) error {
	if a.cfg.PostgresDSN != "" {
		warehouse, err := a.openWarehouse(ctx)
		if err != nil {
			return err
		}
		a.store = warehouse
		return nil
	}
	a.store = csvstore.NewStationStore(a.cfg.StationsPath)
	return nil
}

// openStorage attaches the station table and the results sink. Postgres
// serves both when a DSN is configured; otherwise the CSV files do.
func (a *app) openStorage(ctx context.Context) error {
	if a.cfg.PostgresDSN != "" {
		warehouse, err := a.openWarehouse(ctx)
		if err != nil {
			return err
		}
		a.store = warehouse
		a.sink = warehouse
		return nil
	}

	sink, err := csvstore.OpenSink(a.cfg.ResultsPath)
	if err != nil {
		return err
	}
	a.store = csvstore.NewStationStore(a.cfg.StationsPath)
	a.sink = sink
	a.sinkClose = sink.Close
	return nil
}

func (a *app) openWarehouse(ctx context.Context) (*postgres.Warehouse, error) {
	if a.warehouse != nil {
		return a.warehouse, nil
	}
	warehouse, err := postgres.New(ctx, a.cfg.PostgresDSN, a.logger)
	if err != nil {
		return nil, err
	}
	if err := warehouse.EnsureSchema(ctx); err != nil {
		warehouse.Close()
		return nil, err
	}
	a.warehouse = warehouse
	return warehouse, nil
}

func (a *app) weatherClient() (*openweather.Client, error) {
	if a.cfg.OpenWeatherAPIKey == "" {
		return nil, errors.New("OPENWEATHER_API_KEY is not set")
	}
	return openweather.NewClient(a.cfg.OpenWeatherAPIKey, a.cfg.OpenWeatherBaseURL, a.cfg.OpenWeatherTimeout, a.logger), nil
}

func (a *app) close() {
	if a.sinkClose != nil {
		if err := a.sinkClose(); err != nil {
			a.logger.Error("results sink close error", "error", err)
		}
	}
	if a.warehouse != nil {
		a.warehouse.Close()
	}
}
