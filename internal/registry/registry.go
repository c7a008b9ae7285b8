// Package registry owns the station table: which stations exist, where they
// are, and how far each one has been collected.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/couchcryptid/aussie-weather-etl/internal/observability"
)

// nameOverrides fixes the two reference names that capital-splitting cannot
// recover: Nhil is a typo for Nhill, and the Pearce RAAF base is geocoded
// under the town of Bullsbrook.
var nameOverrides = map[string]string{
	"Nhil":           "Nhill",
	"Pearce R A A F": "Bullsbrook",
}

var capitalRunRe = regexp.MustCompile(`[A-Z][^A-Z\s]*`)

// Registry is the in-memory station table plus its durable store. It is the
// single owner of station progress state; callers mutate it only through
// Advance and persist it with Flush.
type Registry struct {
	stations []domain.Station
	store    domain.StationStore
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New wraps an already-loaded station list.
func New(stations []domain.Station, store domain.StationStore, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{stations: stations, store: store, logger: logger, metrics: metrics}
}

// Load reads the station table from the store.
func Load(ctx context.Context, store domain.StationStore, logger *slog.Logger, metrics *observability.Metrics) (*Registry, error) {
	stations, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(stations, store, logger, metrics), nil
}

// NewFromReference derives the station population from the reference
// observation set: one station per distinct location, ordered by descending
// observation count (ties keep first appearance), with no coordinates and
// no progress. Returns ErrEmptyReference when there is nothing to derive.
func NewFromReference(locations []string) ([]domain.Station, error) {
	if len(locations) == 0 {
		return nil, domain.ErrEmptyReference
	}

	counts := make(map[string]int)
	var order []string
	for _, loc := range locations {
		if counts[loc] == 0 {
			order = append(order, loc)
		}
		counts[loc]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	stations := make([]domain.Station, len(order))
	for i, name := range order {
		stations[i] = domain.Station{Name: name, CorrectedName: name}
	}
	return stations, nil
}

// SplitCapitals rewrites a concatenated-capitalized name as space-separated
// words: "AliceSprings" becomes "Alice Springs". Names already containing
// spaces pass through unchanged, so the function is idempotent.
func SplitCapitals(name string) string {
	words := capitalRunRe.FindAllString(name, -1)
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}

// CorrectNames applies the name normalization to every station's corrected
// name, then the fixed override table. Pass nil to use SplitCapitals.
// Reapplying produces the same output.
func (r *Registry) CorrectNames(transform func(string) string) {
	if transform == nil {
		transform = SplitCapitals
	}
	for i := range r.stations {
		corrected := transform(r.stations[i].CorrectedName)
		if override, ok := nameOverrides[corrected]; ok {
			corrected = override
		}
		r.stations[i].CorrectedName = corrected
	}
}

// GeocodeMissing resolves coordinates for every station that lacks them.
// Failures are isolated per station: a lookup error or a no-match leaves
// that station uncoordinated and moves on. A result that collides with
// another station's coordinates is rejected, keeping the (lat, lon)
// uniqueness invariant.
func (r *Registry) GeocodeMissing(ctx context.Context, geocoder domain.Geocoder, country string) {
	for i := range r.stations {
		st := &r.stations[i]
		if st.HasCoordinates() {
			continue
		}

		result, err := geocoder.Geocode(ctx, st.CorrectedName, country)
		if err != nil {
			r.logger.Warn("geocoding failed", "station", st.Name, "error", err)
			r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
			continue
		}
		if !result.Found {
			r.logger.Warn("no geocoding match", "station", st.Name, "query", st.CorrectedName)
			r.metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
			continue
		}
		if other := r.findByCoordinates(result.Latitude, result.Longitude); other != "" && other != st.Name {
			r.logger.Warn("geocoding collision, leaving station uncoordinated",
				"station", st.Name, "collides_with", other)
			r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
			continue
		}

		st.Latitude = result.Latitude
		st.Longitude = result.Longitude
		r.metrics.GeocodeRequests.WithLabelValues("resolved").Inc()
		r.logger.Info("station geocoded", "station", st.Name, "lat", st.Latitude, "lon", st.Longitude)
	}
}

// NextDue selects the next (station, target date) to collect:
//
//  1. Among stations already started and strictly before the horizon, the
//     one with the earliest progress date, continuing at progress + 1 day.
//  2. Otherwise any never-collected station, starting at period end + 1 day.
//  3. Otherwise the run is complete.
//
// Started stations are finished before new ones are opened; that is a
// continuity policy, not FIFO by name. Stations without resolved
// coordinates cannot be queried and are skipped.
func (r *Registry) NextDue(window domain.CollectionWindow) (domain.Station, time.Time, bool) {
	var best *domain.Station
	for i := range r.stations {
		st := &r.stations[i]
		if !st.HasCoordinates() || st.LastProcessed.IsZero() {
			continue
		}
		if !st.LastProcessed.Before(window.SearchHorizonEnd) {
			continue
		}
		if best == nil || st.LastProcessed.Before(best.LastProcessed) {
			best = st
		}
	}
	if best != nil {
		return *best, domain.NextDay(best.LastProcessed), true
	}

	for i := range r.stations {
		st := &r.stations[i]
		if st.HasCoordinates() && st.LastProcessed.IsZero() {
			return *st, domain.NextDay(window.PeriodEnd), true
		}
	}

	return domain.Station{}, time.Time{}, false
}

// Advance records date as the station's new last-processed date. Must be
// called exactly once per successfully processed date.
func (r *Registry) Advance(name string, date time.Time) error {
	for i := range r.stations {
		if r.stations[i].Name == name {
			r.stations[i].LastProcessed = date
			return nil
		}
	}
	return fmt.Errorf("advance: unknown station %q", name)
}

// Stations returns a copy of the current station table.
func (r *Registry) Stations() []domain.Station {
	out := make([]domain.Station, len(r.stations))
	copy(out, r.stations)
	return out
}

// Flush persists the current progress snapshot to the station store.
func (r *Registry) Flush(ctx context.Context) error {
	return r.store.Save(ctx, r.stations)
}

func (r *Registry) findByCoordinates(lat, lon float64) string {
	for i := range r.stations {
		st := &r.stations[i]
		if st.HasCoordinates() && st.Latitude == lat && st.Longitude == lon {
			return st.Name
		}
	}
	return ""
}
