package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/aussie-weather-etl/internal/adapter/http"
	"github.com/couchcryptid/aussie-weather-etl/internal/collector"
	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run bounded collection passes on a cron schedule with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
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

			return runWatch(ctx, a, sched)
		},
	}
}

// runTracker remembers the most recent run for /statusz and /readyz. The
// service reports ready once one run has finished, whatever its reason.
type runTracker struct {
	mu         sync.Mutex
	report     collector.RunReport
	finishedAt time.Time
	hasRun     bool
	inFlight   atomic.Bool
}

func (t *runTracker) record(report collector.RunReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report = report
	t.finishedAt = domain.Now()
	t.hasRun = true
}

func (t *runTracker) LastRun() (collector.RunReport, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report, t.finishedAt, t.hasRun
}

func (t *runTracker) CheckReadiness(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasRun {
		return errors.New("no collection run has completed yet")
	}
	return nil
}

func runWatch(ctx context.Context, a *app, sched *collector.Scheduler) error {
	tracker := &runTracker{}

	runOnce := func() {
		// Budget-bounded runs can still outlast a short cron interval.
		if !tracker.inFlight.CompareAndSwap(false, true) {
			a.logger.Warn("previous run still in flight, skipping this tick")
			return
		}
		defer tracker.inFlight.Store(false)

		report, err := sched.Run(ctx, a.cfg.MaxRequestsPerRun)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("collection run failed", "error", err)
		}
		tracker.record(report)
	}

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.WatchSchedule, runOnce); err != nil {
		return err
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, tracker, tracker, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	a.logger.Info("watch mode started", "schedule", a.cfg.WatchSchedule, "addr", a.cfg.HTTPAddr)
	c.Start()

	<-ctx.Done()
	a.logger.Info("shutting down")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
