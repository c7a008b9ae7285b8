// Package domain models the incremental weather collection pipeline.
//
// # Data Source
//
// Observations come from the OpenWeather One Call API. Collecting one
// station-day takes three queries: a day summary
// (/data/3.0/onecall/day_summary) and two timemachine snapshots
// (/data/3.0/onecall/timemachine) at 09:00 and 15:00 local time. The three
// responses are merged into a single denormalized row whose columns mirror
// the Australian Bureau of Meteorology reference dataset (weatherAUS) that
// seeds the station list and defines the output schema.
//
// # Collection Window
//
// A run is bounded by a CollectionWindow loaded from configuration:
// PeriodStart..PeriodEnd is the reference period being backfilled, and
// SearchHorizonEnd is the outermost date a station cursor may advance to.
// Crossing the horizon is the normal way a station is released back to the
// registry, not an error.
//
// # Rain Labels
//
// RainToday is derived at row creation time: rainfall of at least 1.0 mm is
// "Yes", anything less is "No". RainTomorrow for a row can only be known
// once the next day's rainfall has been fetched, so it is backfilled
// retroactively; the final row of a bounded run legitimately ends with it
// unset.
package domain
