// Package postgres is the database warehouse: denormalized rows, station
// progress, and the auxiliary pipeline tables.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Warehouse implements domain.Sink and domain.StationStore over a pgx pool,
// plus the insert paths used by the auxiliary pipelines.
type Warehouse struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects a pool and verifies it with a ping.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Warehouse, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Warehouse{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the warehouse tables when they do not exist yet. The
// unique constraints back every dedup guarantee the writers rely on.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS weather_rows (
			date            date NOT NULL,
			location        text NOT NULL,
			min_temp        double precision,
			max_temp        double precision,
			rainfall        double precision,
			evaporation     double precision,
			sunshine        double precision,
			wind_gust_dir   text,
			wind_gust_speed double precision,
			wind_dir_9am    text,
			wind_dir_3pm    text,
			wind_speed_9am  double precision,
			wind_speed_3pm  double precision,
			humidity_9am    double precision,
			humidity_3pm    double precision,
			pressure_9am    double precision,
			pressure_3pm    double precision,
			cloud_9am       double precision,
			cloud_3pm       double precision,
			temp_9am        double precision,
			temp_3pm        double precision,
			rain_today      text,
			rain_tomorrow   text,
			PRIMARY KEY (date, location)
		)`,
		`CREATE TABLE IF NOT EXISTS stations (
			name           text PRIMARY KEY,
			corrected_name text NOT NULL,
			latitude       double precision NOT NULL,
			longitude      double precision NOT NULL,
			last_processed date
		)`,
		`CREATE TABLE IF NOT EXISTS current_observations (
			location    text NOT NULL,
			observed_at timestamptz NOT NULL,
			temp        double precision,
			humidity    double precision,
			pressure    double precision,
			wind_dir    text,
			wind_speed  double precision,
			clouds      double precision,
			PRIMARY KEY (location, observed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS air_quality_readings (
			location      text NOT NULL,
			observed_at   timestamptz NOT NULL,
			pollutant     text NOT NULL,
			concentration double precision NOT NULL,
			PRIMARY KEY (location, observed_at, pollutant)
		)`,
	}
	for _, stmt := range statements {
		if _, err := w.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const insertRowQuery = `
	INSERT INTO weather_rows (
		date, location, min_temp, max_temp, rainfall, evaporation, sunshine,
		wind_gust_dir, wind_gust_speed, wind_dir_9am, wind_dir_3pm,
		wind_speed_9am, wind_speed_3pm, humidity_9am, humidity_3pm,
		pressure_9am, pressure_3pm, cloud_9am, cloud_3pm, temp_9am, temp_3pm,
		rain_today, rain_tomorrow
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT (date, location) DO NOTHING
`

// SafeUpsert inserts the row unless its (date, location) key exists. The
// conditional insert is a single statement, so concurrent writers cannot
// race a duplicate in.
func (w *Warehouse) SafeUpsert(ctx context.Context, row domain.WeatherRow) (domain.UpsertOutcome, error) {
	tag, err := w.pool.Exec(ctx, insertRowQuery, rowArgs(row)...)
	if err != nil {
		return 0, fmt.Errorf("upsert row %s %s: %w", row.Location, domain.FormatDate(row.Date), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.UpsertAlreadyPresent, nil
	}
	return domain.UpsertInserted, nil
}

// AppendBatch queues one conditional insert per row through a pgx batch.
func (w *Warehouse) AppendBatch(ctx context.Context, rows []domain.WeatherRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertRowQuery, rowArgs(row)...)
	}

	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append batch row %d: %w", i, err)
		}
	}
	return nil
}

func rowArgs(row domain.WeatherRow) []any {
	return []any{
		row.Date, row.Location,
		row.MinTemp, row.MaxTemp, row.Rainfall, row.Evaporation, row.Sunshine,
		row.WindGustDir, row.WindGustSpeed, row.WindDir9am, row.WindDir3pm,
		row.WindSpeed9am, row.WindSpeed3pm, row.Humidity9am, row.Humidity3pm,
		row.Pressure9am, row.Pressure3pm, row.Cloud9am, row.Cloud3pm,
		row.Temp9am, row.Temp3pm,
		row.RainToday, row.RainTomorrow,
	}
}

// Load reads the full station table. A zero-row table is a valid empty
// registry, not an error; file stores differ here because a missing file
// usually means a wrong path.
func (w *Warehouse) Load(ctx context.Context) ([]domain.Station, error) {
	rows, err := w.pool.Query(ctx,
		`SELECT name, corrected_name, latitude, longitude, last_processed FROM stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	defer rows.Close()

	var stations []domain.Station
	for rows.Next() {
		var st domain.Station
		var lastProcessed pgtype.Date
		if err := rows.Scan(&st.Name, &st.CorrectedName, &st.Latitude, &st.Longitude, &lastProcessed); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		if lastProcessed.Valid {
			st.LastProcessed = lastProcessed.Time
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// Save overwrites the station table with the given snapshot in one
// transaction.
func (w *Warehouse) Save(ctx context.Context, stations []domain.Station) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin station save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stations`); err != nil {
		return fmt.Errorf("clear stations: %w", err)
	}
	for _, st := range stations {
		var lastProcessed any
		if !st.LastProcessed.IsZero() {
			lastProcessed = st.LastProcessed
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO stations (name, corrected_name, latitude, longitude, last_processed)
			 VALUES ($1, $2, $3, $4, $5)`,
			st.Name, st.CorrectedName, st.Latitude, st.Longitude, lastProcessed)
		if err != nil {
			return fmt.Errorf("save station %s: %w", st.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// InsertObservation stores a current-weather reading; replays of the same
// (location, observed_at) are no-ops.
func (w *Warehouse) InsertObservation(ctx context.Context, obs domain.CurrentObservation) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO current_observations (location, observed_at, temp, humidity, pressure, wind_dir, wind_speed, clouds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (location, observed_at) DO NOTHING`,
		obs.Location, obs.ObservedAt, obs.Temp, obs.Humidity, obs.Pressure, obs.WindDir, obs.WindSpeed, obs.Clouds)
	if err != nil {
		return fmt.Errorf("insert observation %s: %w", obs.Location, err)
	}
	return nil
}

// InsertReading stores an air-quality reading with the same replay guarantee.
func (w *Warehouse) InsertReading(ctx context.Context, reading domain.AirQualityReading) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO air_quality_readings (location, observed_at, pollutant, concentration)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (location, observed_at, pollutant) DO NOTHING`,
		reading.Location, reading.ObservedAt, reading.Pollutant, reading.Concentration)
	if err != nil {
		return fmt.Errorf("insert reading %s/%s: %w", reading.Location, reading.Pollutant, err)
	}
	return nil
}

// HealthCheck pings the pool, for the readiness endpoint.
func (w *Warehouse) HealthCheck(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close releases the pool.
func (w *Warehouse) Close() {
	w.pool.Close()
}
