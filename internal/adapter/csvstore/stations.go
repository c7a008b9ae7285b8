package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
)

var stationHeader = []string{"Name", "Latitude", "Longitude", "LastProcessedDate", "CorrectedName"}

// StationStore persists the station table as a semicolon-delimited file.
// Save rewrites the whole table atomically via a temp file rename.
type StationStore struct {
	path string
}

// NewStationStore creates a station store backed by the given file path.
func NewStationStore(path string) *StationStore {
	return &StationStore{path: path}
}

// Load reads all stations. A missing file is an error: the table is created
// by the stations init command, and collecting without it is a setup bug.
func (s *StationStore) Load(_ context.Context) ([]domain.Station, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open station table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read station table header: %w", err)
	}

	var stations []domain.Station
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) != len(stationHeader) {
			return nil, fmt.Errorf("station table: malformed record %v", record)
		}

		st := domain.Station{Name: record[0], CorrectedName: record[4]}
		if record[1] != "" {
			if st.Latitude, err = strconv.ParseFloat(record[1], 64); err != nil {
				return nil, fmt.Errorf("station %s: bad latitude %q: %w", st.Name, record[1], err)
			}
		}
		if record[2] != "" {
			if st.Longitude, err = strconv.ParseFloat(record[2], 64); err != nil {
				return nil, fmt.Errorf("station %s: bad longitude %q: %w", st.Name, record[2], err)
			}
		}
		if record[3] != "" {
			if st.LastProcessed, err = domain.ParseDate(record[3]); err != nil {
				return nil, fmt.Errorf("station %s: bad last processed date: %w", st.Name, err)
			}
		}
		stations = append(stations, st)
	}

	return stations, nil
}

// Save overwrites the station table with the given progress snapshot.
func (s *StationStore) Save(_ context.Context, stations []domain.Station) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create station table: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'

	if err := w.Write(stationHeader); err != nil {
		f.Close()
		return fmt.Errorf("write station table header: %w", err)
	}
	for _, st := range stations {
		record := []string{st.Name, "", "", "", st.CorrectedName}
		if st.HasCoordinates() {
			record[1] = strconv.FormatFloat(st.Latitude, 'f', -1, 64)
			record[2] = strconv.FormatFloat(st.Longitude, 'f', -1, 64)
		}
		if !st.LastProcessed.IsZero() {
			record[3] = domain.FormatDate(st.LastProcessed)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("write station %s: %w", st.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush station table: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close station table: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace station table: %w", err)
	}
	return nil
}
