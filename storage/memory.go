package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"propsearch/models"
)

// MemoryStore keeps the cache in process memory. It exists for tests and
// for running without persistence; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]models.CacheEntry
	listings map[string]models.RawListing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]models.CacheEntry),
		listings: make(map[string]models.RawListing),
	}
}

func (s *MemoryStore) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	out := entry
	out.Listings = append([]models.RawListing(nil), entry.Listings...)
	return &out, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.Listings = append([]models.RawListing(nil), entry.Listings...)
	s.entries[entry.Fingerprint] = stored
	for _, listing := range entry.Listings {
		s.listings[listing.ID] = listing
	}
	return nil
}

func (s *MemoryStore) GetListing(ctx context.Context, id string) (*models.RawListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return &listing, nil
}

func (s *MemoryStore) StaleEntries(ctx context.Context, cutoff time.Time, limit int) ([]models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []models.CacheEntry
	for _, entry := range s.entries {
		if entry.FetchedAt.Before(cutoff) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FetchedAt.After(entries[j].FetchedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for fp, entry := range s.entries {
		if entry.FetchedAt.Before(cutoff) {
			delete(s.entries, fp)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
