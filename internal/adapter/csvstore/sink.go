package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
)

// rowHeader mirrors the reference dataset column order exactly.
var rowHeader = []string{
	"Date", "Location", "MinTemp", "MaxTemp", "Rainfall", "Evaporation", "Sunshine",
	"WindGustDir", "WindGustSpeed", "WindDir9am", "WindDir3pm", "WindSpeed9am",
	"WindSpeed3pm", "Humidity9am", "Humidity3pm", "Pressure9am", "Pressure3pm",
	"Cloud9am", "Cloud3pm", "Temp9am", "Temp3pm", "RainToday", "RainTomorrow",
}

// Sink appends denormalized rows to a semicolon-delimited file. It loads the
// existing (date, location) keys at open time, so re-ingesting a processed
// unit is a no-op. The collector holds the run lock, so a single in-process
// mutex is enough to keep the index and the file consistent.
type Sink struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	seen map[string]struct{}
}

// OpenSink opens (or creates) the results file and indexes its existing rows.
func OpenSink(path string) (*Sink, error) {
	existing, err := readExistingKeys(path)
	if err != nil {
		return nil, err
	}
	newFile := existing == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'

	if newFile {
		existing = make(map[string]struct{})
		if err := w.Write(rowHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write results header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush results header: %w", err)
		}
	}

	return &Sink{f: f, w: w, seen: existing}, nil
}

// SafeUpsert appends the row unless its (date, location) key is already
// present.
func (s *Sink) SafeUpsert(_ context.Context, row domain.WeatherRow) (domain.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey(domain.FormatDate(row.Date), row.Location)
	if _, ok := s.seen[key]; ok {
		return domain.UpsertAlreadyPresent, nil
	}

	if err := s.w.Write(rowRecord(row)); err != nil {
		return 0, fmt.Errorf("append row %s: %w", key, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return 0, fmt.Errorf("flush row %s: %w", key, err)
	}

	s.seen[key] = struct{}{}
	return domain.UpsertInserted, nil
}

// AppendBatch upserts each row in order, keeping the per-row dedup guarantee.
func (s *Sink) AppendBatch(ctx context.Context, rows []domain.WeatherRow) error {
	for _, row := range rows {
		if _, err := s.SafeUpsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// readExistingKeys indexes (date, location) pairs already in the file.
// Returns nil (not an empty map) when the file does not exist yet.
func readExistingKeys(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1

	keys := make(map[string]struct{})
	first := true
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if first {
			first = false
			continue
		}
		if len(record) >= 2 {
			keys[rowKey(record[0], record[1])] = struct{}{}
		}
	}
	return keys, nil
}

func rowKey(date, location string) string {
	return date + "|" + location
}

func rowRecord(row domain.WeatherRow) []string {
	return []string{
		domain.FormatDate(row.Date),
		row.Location,
		formatFloat(row.MinTemp),
		formatFloat(row.MaxTemp),
		formatFloat(row.Rainfall),
		formatOptional(row.Evaporation),
		formatOptional(row.Sunshine),
		row.WindGustDir,
		formatFloat(row.WindGustSpeed),
		row.WindDir9am,
		row.WindDir3pm,
		formatFloat(row.WindSpeed9am),
		formatFloat(row.WindSpeed3pm),
		formatFloat(row.Humidity9am),
		formatFloat(row.Humidity3pm),
		formatFloat(row.Pressure9am),
		formatFloat(row.Pressure3pm),
		formatFloat(row.Cloud9am),
		formatFloat(row.Cloud3pm),
		formatFloat(row.Temp9am),
		formatFloat(row.Temp3pm),
		row.RainToday,
		row.RainTomorrow,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
