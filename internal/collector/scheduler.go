// Package collector drives bounded, resumable collection runs: pick the next
// due (station, date), fetch its row, backfill yesterday's rain label, and
// persist with dedup protection.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// Stop reasons for a collection run.
const (
	ReasonComplete          = "complete"
	ReasonBudgetExhausted   = "budget_exhausted"
	ReasonSourceUnavailable = "source_unavailable"
	ReasonPersistFailed     = "persist_failed"
	ReasonCanceled          = "canceled"
)

// Fetcher produces one denormalized row per (station, date).
type Fetcher interface {
	Fetch(ctx context.Context, station domain.Station, date time.Time) (domain.WeatherRow, error)
}

// Scheduling is the slice of the station registry the scheduler needs.
type Scheduling interface {
	NextDue(window domain.CollectionWindow) (domain.Station, time.Time, bool)
	Advance(name string, date time.Time) error
	Flush(ctx context.Context) error
}

// RowPublisher emits persisted rows to downstream consumers. Publishing is
// best effort; the warehouse stays the source of truth.
type RowPublisher interface {
	Publish(ctx context.Context, row domain.WeatherRow) error
}

// RunReport summarizes one bounded run.
type RunReport struct {
	Requests      int
	RowsPersisted int
	Duplicates    int
	Reason        string
}

// Scheduler walks stations through the collection window one date at a time.
//
// Rows are persisted one unit behind the cursor: a fetched row is held
// pending until the next date's row arrives, whose rain label backfills the
// pending row's RainTomorrow. Whenever continuity breaks, at a station
// switch, budget exhaustion, source failure, or run completion, the pending
// row is flushed with RainTomorrow left unset. Progress is advanced at fetch
// time, so a flushed pending row is never re-fetched.
type Scheduler struct {
	registry  Scheduling
	fetcher   Fetcher
	sink      domain.Sink
	publisher RowPublisher
	window    domain.CollectionWindow
	logger    *slog.Logger
	metrics   *observability.Metrics

	pending        *domain.WeatherRow
	pendingStation string
	pendingPrev    time.Time // cursor position before the pending row, for rollback
}

// New creates a Scheduler. publisher may be nil when no event stream is
// configured.
func New(registry Scheduling, fetcher Fetcher, sink domain.Sink, publisher RowPublisher, window domain.CollectionWindow, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		registry:  registry,
		fetcher:   fetcher,
		sink:      sink,
		publisher: publisher,
		window:    window,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one bounded collection run of at most maxRequests fetch
// units. It always flushes the pending row and the station table before
// returning, whatever the stop reason, so no fetched data or progress is
// lost between runs.
func (s *Scheduler) Run(ctx context.Context, maxRequests int) (RunReport, error) {
	start := domain.Now()
	s.metrics.CollectorRunning.Set(1)
	defer func() {
		s.metrics.CollectorRunning.Set(0)
		s.metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
	}()

	report := RunReport{}
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			report.Reason = ReasonCanceled
			runErr = err
			break
		}
		if report.Requests >= maxRequests {
			report.Reason = ReasonBudgetExhausted
			break
		}

		station, target, ok := s.registry.NextDue(s.window)
		if !ok {
			report.Reason = ReasonComplete
			break
		}

		report.Requests++
		row, err := s.fetcher.Fetch(ctx, station, target)
		if err != nil {
			s.metrics.FetchFailures.Inc()
			s.logger.Error("fetch failed, aborting run",
				"station", station.Name, "date", domain.FormatDate(target), "error", err)
			report.Reason = ReasonSourceUnavailable
			if !errors.Is(err, domain.ErrSourceUnavailable) {
				runErr = err
			}
			break
		}

		// The new row's rain label backfills the pending row only when it
		// is the very next date of the same station.
		backfill := s.pending != nil &&
			s.pendingStation == station.Name &&
			target.Equal(domain.NextDay(s.pending.Date))
		if backfill {
			s.pending.RainTomorrow = row.RainToday
		}
		if err := s.flushPending(ctx, &report); err != nil {
			report.Reason = ReasonPersistFailed
			runErr = err
			break
		}

		s.pending = &row
		s.pendingStation = station.Name
		s.pendingPrev = station.LastProcessed
		if err := s.registry.Advance(station.Name, target); err != nil {
			report.Reason = ReasonPersistFailed
			runErr = err
			break
		}
	}

	if err := s.flushPending(ctx, &report); err != nil && runErr == nil {
		report.Reason = ReasonPersistFailed
		runErr = err
	}
	if err := s.registry.Flush(ctx); err != nil && runErr == nil {
		report.Reason = ReasonPersistFailed
		runErr = fmt.Errorf("flush station table: %w", err)
	}

	s.metrics.RunsCompleted.WithLabelValues(report.Reason).Inc()
	s.logger.Info("run finished",
		"reason", report.Reason,
		"requests", report.Requests,
		"rows_persisted", report.RowsPersisted,
		"duplicates", report.Duplicates)
	return report, runErr
}

// flushPending persists the held row, if any. The last row of a run goes out
// with RainTomorrow unset; a later run of the same station re-fetches the
// following date but never rewrites the already-persisted row.
func (s *Scheduler) flushPending(ctx context.Context, report *RunReport) error {
	if s.pending == nil {
		return nil
	}
	row := *s.pending

	outcome, err := s.sink.SafeUpsert(ctx, row)
	if err != nil {
		// Roll the cursor back so the unpersisted date is re-fetched on the
		// next run instead of leaving a permanent gap.
		if rbErr := s.registry.Advance(s.pendingStation, s.pendingPrev); rbErr != nil {
			s.logger.Error("cursor rollback failed", "station", s.pendingStation, "error", rbErr)
		}
		s.pending = nil
		s.pendingStation = ""
		return fmt.Errorf("persist row %s %s: %w", row.Location, domain.FormatDate(row.Date), err)
	}
	s.pending = nil
	s.pendingStation = ""
	switch outcome {
	case domain.UpsertInserted:
		report.RowsPersisted++
		s.metrics.RowsUpserted.Inc()
	case domain.UpsertAlreadyPresent:
		report.Duplicates++
		s.metrics.DuplicateRows.Inc()
		s.logger.Debug("duplicate row skipped",
			"location", row.Location, "date", domain.FormatDate(row.Date))
	}

	if s.publisher != nil && outcome == domain.UpsertInserted {
		if err := s.publisher.Publish(ctx, row); err != nil {
			s.logger.Warn("row publish failed",
				"location", row.Location, "date", domain.FormatDate(row.Date), "error", err)
		}
	}
	return nil
}
