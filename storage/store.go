package storage

import (
	"context"
	"time"

	"propsearch/models"
)

// CacheStore is the persistent mapping from a criteria fingerprint to its
// cached listing set. Lookup returns (nil, nil) when no entry exists; Put
// has upsert semantics with last-write-wins for concurrent writers.
// Staleness is a judgment made by the caller, not the store: Lookup always
// returns what it has.
//
// Implementations wrap persistence failures in models.CacheUnavailableError.
type CacheStore interface {
	Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error

	// GetListing returns a single cached listing by portal id, or nil when
	// it has never been cached.
	GetListing(ctx context.Context, id string) (*models.RawListing, error)

	// StaleEntries returns up to limit entries fetched before cutoff, most
	// recently fetched first. Used by the refresh worker.
	StaleEntries(ctx context.Context, cutoff time.Time, limit int) ([]models.CacheEntry, error)

	// PurgeExpired deletes entries fetched before cutoff and reports how
	// many were removed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
