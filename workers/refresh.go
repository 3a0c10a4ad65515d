package workers

import (
	"context"
	"log"
	"time"

	"propsearch/models"
	"propsearch/services"
	"propsearch/storage"
)

// RefreshWorker re-fetches stale cache entries in the background so
// frequently used searches stay warm instead of paying the portal
// round-trip on the next interactive request. A failed refresh leaves the
// old entry in place; it remains servable as a stale fallback.
type RefreshWorker struct {
	store     storage.CacheStore
	fetcher   services.Fetcher
	ttl       time.Duration
	triggerCh chan struct{}
}

func NewRefreshWorker(store storage.CacheStore, fetcher services.Fetcher, ttl time.Duration) *RefreshWorker {
	return &RefreshWorker{
		store:     store,
		fetcher:   fetcher,
		ttl:       ttl,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh pass.
func (w *RefreshWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run refreshes up to batchSize stale entries every interval until ctx is
// cancelled.
func (w *RefreshWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	log.Printf("Refresh worker started (batch %d, every %s)", batchSize, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refreshBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.refreshBatch(ctx, batchSize)
		case <-ctx.Done():
			log.Println("Refresh worker stopped")
			return
		}
	}
}

func (w *RefreshWorker) refreshBatch(ctx context.Context, batchSize int) {
	cutoff := time.Now().Add(-w.ttl)
	entries, err := w.store.StaleEntries(ctx, cutoff, batchSize)
	if err != nil {
		log.Printf("Refresh: could not list stale entries: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Printf("Refresh: %d stale entries", len(entries))
	for i := range entries {
		if err := w.refreshEntry(ctx, &entries[i]); err != nil {
			log.Printf("Refresh: %s failed: %v", entries[i].Fingerprint, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (w *RefreshWorker) refreshEntry(ctx context.Context, entry *models.CacheEntry) error {
	listings, err := w.fetcher.FetchListings(ctx, entry.Criteria)
	if err != nil {
		return err
	}

	err = w.store.Put(ctx, &models.CacheEntry{
		Fingerprint: entry.Fingerprint,
		Criteria:    entry.Criteria,
		Listings:    listings,
		FetchedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	log.Printf("Refresh: %s refreshed (%d listings)", entry.Fingerprint, len(listings))
	return nil
}
