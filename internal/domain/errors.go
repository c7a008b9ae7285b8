package domain

import "errors"

var (
	// ErrSourceUnavailable marks a transient failure of the external weather
	// source. A fetch that fails this way produces no partial row and aborts
	// the current run; the same (station, date) is retried on the next run.
	ErrSourceUnavailable = errors.New("weather source unavailable")

	// ErrEmptyReference is returned when the reference dataset holds no
	// usable observations. Fatal to station initialization.
	ErrEmptyReference = errors.New("reference dataset is empty")
)

// UpsertOutcome is the result of a dedup-safe warehouse write. A duplicate
// is an expected outcome of re-processing a unit, not an error.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertAlreadyPresent
)

func (o UpsertOutcome) String() string {
	if o == UpsertAlreadyPresent {
		return "already present"
	}
	return "inserted"
}
