package models

import "time"

// CacheEntry is one cached search: the raw pre-filter listing set for a
// criteria fingerprint, plus the criteria snapshot and fetch time. Entries
// are overwritten whole on refresh, never partially updated.
type CacheEntry struct {
	Fingerprint string             `json:"fingerprint"`
	Criteria    NormalizedCriteria `json:"criteria"`
	Listings    []RawListing       `json:"listings"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
