package services

import (
	"context"
	"log"
	"time"

	"propsearch/identity"
	"propsearch/models"
	"propsearch/storage"
)

// Fetcher performs the live portal fetch for normalized criteria. Failures
// are *models.FetchError.
type Fetcher interface {
	FetchListings(ctx context.Context, n models.NormalizedCriteria) ([]models.RawListing, error)
}

// SearchService is the single entry point for property search: it
// normalizes the request, resolves the raw listing set through the cache,
// and applies the constraint filter unconditionally before returning.
//
// The filter runs on every path — cache hit, fresh fetch and stale
// fallback — so cached and live data always pass through identical filter
// semantics. Call sites must not bypass this facade.
type SearchService struct {
	store   storage.CacheStore
	fetcher Fetcher
	ttl     time.Duration
	mode    MatchMode
	now     func() time.Time
}

func NewSearchService(store storage.CacheStore, fetcher Fetcher, ttl time.Duration, mode MatchMode) *SearchService {
	return &SearchService{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		mode:    mode,
		now:     time.Now,
	}
}

// Search runs one search request end to end. Normalization errors surface
// immediately; cache errors degrade to a live fetch; fetch errors propagate
// only when no cached entry exists to serve stale.
func (s *SearchService) Search(ctx context.Context, c models.SearchCriteria) (*models.SearchResult, error) {
	n, err := identity.Normalize(c)
	if err != nil {
		return nil, err
	}

	listings, provenance, age, err := s.resolve(ctx, n)
	if err != nil {
		return nil, err
	}

	filtered := FilterListings(n, listings, s.mode)

	return &models.SearchResult{
		Listings:     filtered,
		Provenance:   provenance,
		EntryAge:     age,
		TotalFetched: len(listings),
	}, nil
}

// Refresh force-fetches an entry's criteria and overwrites its cache row.
// Used by the refresh worker; interactive requests go through Search.
func (s *SearchService) Refresh(ctx context.Context, n models.NormalizedCriteria) error {
	listings, err := s.fetcher.FetchListings(ctx, n)
	if err != nil {
		return err
	}
	return s.put(ctx, n, listings)
}

func (s *SearchService) resolve(ctx context.Context, n models.NormalizedCriteria) ([]models.RawListing, models.Provenance, time.Duration, error) {
	fingerprint := identity.Fingerprint(n)

	entry, lookupErr := s.store.Lookup(ctx, fingerprint)
	if lookupErr != nil {
		// Treat as a miss plus no persistence; the search itself goes on.
		log.Printf("Search: cache lookup failed, falling back to live fetch: %v", lookupErr)
		entry = nil
	}

	now := s.now()
	if entry != nil && entry.Age(now) <= s.ttl {
		return entry.Listings, models.ProvenanceCacheHit, entry.Age(now), nil
	}

	listings, fetchErr := s.fetcher.FetchListings(ctx, n)
	if fetchErr != nil {
		if entry != nil {
			// Serve-stale-on-error: freshness is sacrificed to keep search
			// usable while upstream is flaky.
			log.Printf("Search: fetch failed, serving stale entry %s (age %s): %v",
				fingerprint, entry.Age(now), fetchErr)
			return entry.Listings, models.ProvenanceCacheHit, entry.Age(now), nil
		}
		return nil, "", 0, fetchErr
	}

	if err := s.put(ctx, n, listings); err != nil {
		log.Printf("Search: cache write failed for %s: %v", fingerprint, err)
	}

	return listings, models.ProvenanceRefreshed, 0, nil
}

func (s *SearchService) put(ctx context.Context, n models.NormalizedCriteria, listings []models.RawListing) error {
	return s.store.Put(ctx, &models.CacheEntry{
		Fingerprint: identity.Fingerprint(n),
		Criteria:    n,
		Listings:    listings,
		FetchedAt:   s.now(),
	})
}
