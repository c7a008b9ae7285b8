// Package csvstore reads and writes the semicolon-delimited tables the
// collector shares with the reference dataset: the weatherAUS seed file,
// the station progress table, and the collected-rows sink.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ReadReferenceLocations returns the Location column of the reference
// observation set, one value per data row, in file order.
func ReadReferenceLocations(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}

	locationCol := -1
	for i, name := range header {
		if name == "Location" {
			locationCol = i
			break
		}
	}
	if locationCol < 0 {
		return nil, fmt.Errorf("reference dataset has no Location column")
	}

	var locations []string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if locationCol < len(record) && record[locationCol] != "" {
			locations = append(locations, record[locationCol])
		}
	}

	return locations, nil
}
