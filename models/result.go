package models

import "time"

type Provenance string

const (
	ProvenanceCacheHit  Provenance = "cache_hit"
	ProvenanceRefreshed Provenance = "cache_miss_refreshed"
)

// SearchResult is the filtered outcome of one search request. It is built
// fresh per request and never aliases cache entry contents.
type SearchResult struct {
	Listings   []RawListing  `json:"listings"`
	Provenance Provenance    `json:"provenance"`
	EntryAge   time.Duration `json:"-"`

	// TotalFetched is the raw listing count before constraint filtering.
	TotalFetched int `json:"total_fetched"`
}

func (r *SearchResult) Count() int {
	return len(r.Listings)
}
