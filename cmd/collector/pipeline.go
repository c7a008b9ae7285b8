package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/datalake"
	"github.com/couchcryptid/aussie-weather-etl/internal/adapter/rediscache"
	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/pipeline"
	"github.com/couchcryptid/aussie-weather-etl/internal/registry"
)

func newPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "pipeline [current-weather|air-quality]",
		Short:     "Run one auxiliary feed through the extract-transform-load pipeline",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"current-weather", "air-quality"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if a.cfg.PostgresDSN == "" {
				return errors.New("pipelines need a postgres warehouse, set POSTGRES_DSN")
			}
			warehouse, err := a.openWarehouse(ctx)
			if err != nil {
				return err
			}
			a.store = warehouse
			defer a.close()

			reg, err := registry.Load(ctx, a.store, a.logger, a.metrics)
			if err != nil {
				return err
			}
			client, err := a.weatherClient()
			if err != nil {
				return err
			}

			lake, err := openDatalake(ctx, a)
			if err != nil {
				return err
			}

			switch args[0] {
			case "current-weather":
				cache, closeCache, err := openCache(ctx, a)
				if err != nil {
					return err
				}
				defer closeCache()

				adapter := pipeline.NewCurrentWeatherAdapter(client, reg.Stations(),
					cache, a.cfg.CacheTTL, warehouse, a.logger, a.metrics)
				_, err = pipeline.New[domain.CurrentObservation](adapter, lake, a.logger, a.metrics).Run(ctx)
				return err

			case "air-quality":
				adapter := pipeline.NewAirQualityAdapter(client, reg.Stations(),
					warehouse, a.logger, a.metrics)
				_, err = pipeline.New[domain.AirQualityReading](adapter, lake, a.logger, a.metrics).Run(ctx)
				return err

			default:
				return fmt.Errorf("unknown pipeline %q", args[0])
			}
		},
	}
}

// openDatalake returns nil when no object store is configured; raw archival
// is then skipped.
func openDatalake(ctx context.Context, a *app) (pipeline.Datalake, error) {
	if a.cfg.MinioEndpoint == "" {
		a.logger.Info("datalake disabled, raw payloads will not be archived")
		return nil, nil
	}
	return datalake.New(ctx, a.cfg.MinioEndpoint, a.cfg.MinioAccessKey,
		a.cfg.MinioSecretKey, a.cfg.MinioBucket, a.cfg.MinioUseSSL, a.logger)
}

// openCache returns a nil cache when Redis is not configured.
func openCache(ctx context.Context, a *app) (domain.Cache, func(), error) {
	if a.cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	cache, err := rediscache.New(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() {
		if err := cache.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}
	return cache, closeCache, nil
}
