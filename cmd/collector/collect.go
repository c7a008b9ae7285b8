package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/aussie-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/aussie-weather-etl/internal/collector"
	"github.com/couchcryptid/aussie-weather-etl/internal/config"
	"github.com/couchcryptid/aussie-weather-etl/internal/fetch"
	"github.com/couchcryptid/aussie-weather-etl/internal/registry"
)

func newCollectCmd() *cobra.Command {
	var maxRequests int

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one bounded collection pass over the station table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			if maxRequests > 0 {
				a.cfg.MaxRequestsPerRun = maxRequests
			}
			if err := a.openStorage(ctx); err != nil {
				return err
			}
			defer a.close()

			sched, cleanup, err := buildScheduler(ctx, a)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = sched.Run(ctx, a.cfg.MaxRequestsPerRun)
			return err
		},
	}

	cmd.Flags().IntVar(&maxRequests, "max-requests", 0, "override the per-run fetch budget")
	return cmd
}

// buildScheduler wires the full collection path: registry, fetcher, sink,
// and the optional Kafka row publisher. The returned cleanup closes the
// publisher.
func buildScheduler(ctx context.Context, a *app) (*collector.Scheduler, func(), error) {
	window, err := config.LoadWindow(a.cfg.WindowPath)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.Load(ctx, a.store, a.logger, a.metrics)
	if err != nil {
		return nil, nil, err
	}

	client, err := a.weatherClient()
	if err != nil {
		return nil, nil, err
	}
	fetcher := fetch.New(client, a.logger, a.metrics)

	var publisher collector.RowPublisher
	cleanup := func() {}
	if len(a.cfg.KafkaBrokers) > 0 {
		p := kafkaadapter.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		publisher = p
		cleanup = func() {
			if err := p.Close(); err != nil {
				a.logger.Error("kafka publisher close error", "error", err)
			}
		}
		a.logger.Info("row publishing enabled", "topic", a.cfg.KafkaTopic)
	}

	sched := collector.New(reg, fetcher, a.sink, publisher, window, a.logger, a.metrics)
	return sched, cleanup, nil
}
