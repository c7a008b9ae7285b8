package domain

import (
	"context"
	"time"
)

// Sink is the durable warehouse for denormalized rows. Implementations own
// the (date, location) uniqueness invariant: SafeUpsert must use a single
// conditional write, never find-then-insert.
type Sink interface {
	// SafeUpsert writes the row unless one with the same (date, location)
	// already exists, in which case it is a no-op reporting
	// UpsertAlreadyPresent.
	SafeUpsert(ctx context.Context, row WeatherRow) (UpsertOutcome, error)

	// AppendBatch writes a batch of rows with the same per-row dedup
	// guarantee as SafeUpsert.
	AppendBatch(ctx context.Context, rows []WeatherRow) error
}

// StationStore persists the station table. Save overwrites the whole table
// with the current progress snapshot.
type StationStore interface {
	Load(ctx context.Context) ([]Station, error)
	Save(ctx context.Context, stations []Station) error
}

// Cache is a best-effort TTL key-value store. A miss or a cache failure
// must never change correctness, only latency, so callers treat errors as
// misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
