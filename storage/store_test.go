package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"propsearch/models"
)

// Both real stores must behave identically through the CacheStore
// interface, so the correctness tests run against each implementation.
func withStores(t *testing.T, fn func(t *testing.T, store CacheStore)) {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}

	stores := map[string]CacheStore{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			fn(t, store)
		})
	}
}

func testEntry(fingerprint string, fetchedAt time.Time, ids ...string) *models.CacheEntry {
	var listings []models.RawListing
	for _, id := range ids {
		listings = append(listings, models.RawListing{
			ID:           id,
			Title:        "2BR in " + id,
			Price:        1450000,
			PropertyType: "apartment",
			Purpose:      "residential-for-sale",
			Rooms:        2,
			ImageURLs:    []string{"https://img.example/" + id + ".jpg"},
		})
	}
	return &models.CacheEntry{
		Fingerprint: fingerprint,
		Criteria:    models.NormalizedCriteria{Location: "dubai marina", PropertyType: "apartment", TransactionType: "sale", Bedrooms: -1, Bathrooms: -1},
		Listings:    listings,
		FetchedAt:   fetchedAt,
	}
}

func TestStore_LookupAbsent(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		entry, err := store.Lookup(context.Background(), "deadbeefdeadbeef")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if entry != nil {
			t.Fatalf("expected nil entry for absent fingerprint, got %+v", entry)
		}
	})
}

func TestStore_PutAndLookup(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		ctx := context.Background()
		fetchedAt := time.Now().UTC().Truncate(time.Second)

		if err := store.Put(ctx, testEntry("fp1", fetchedAt, "a1", "a2")); err != nil {
			t.Fatalf("put: %v", err)
		}

		entry, err := store.Lookup(ctx, "fp1")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if entry == nil {
			t.Fatal("expected entry, got nil")
		}
		if len(entry.Listings) != 2 {
			t.Fatalf("expected 2 listings, got %d", len(entry.Listings))
		}
		if entry.Listings[0].ID != "a1" || entry.Listings[0].Price != 1450000 {
			t.Fatalf("listing roundtrip mismatch: %+v", entry.Listings[0])
		}
		if entry.Criteria.Location != "dubai marina" {
			t.Fatalf("criteria roundtrip mismatch: %+v", entry.Criteria)
		}
		if entry.FetchedAt.Unix() != fetchedAt.Unix() {
			t.Fatalf("fetched_at mismatch: want %v, got %v", fetchedAt, entry.FetchedAt)
		}
	})
}

func TestStore_PutOverwrites(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		ctx := context.Background()
		first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
		second := time.Now().UTC().Truncate(time.Second)

		if err := store.Put(ctx, testEntry("fp1", first, "a1", "a2", "a3")); err != nil {
			t.Fatalf("first put: %v", err)
		}
		if err := store.Put(ctx, testEntry("fp1", second, "a4")); err != nil {
			t.Fatalf("second put: %v", err)
		}

		entry, err := store.Lookup(ctx, "fp1")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if len(entry.Listings) != 1 || entry.Listings[0].ID != "a4" {
			t.Fatalf("expected overwritten listings, got %+v", entry.Listings)
		}
		if entry.FetchedAt.Unix() != second.Unix() {
			t.Fatalf("fetched_at not updated: %v", entry.FetchedAt)
		}
	})
}

func TestStore_GetListing(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		ctx := context.Background()

		if err := store.Put(ctx, testEntry("fp1", time.Now(), "a1", "a2")); err != nil {
			t.Fatalf("put: %v", err)
		}

		listing, err := store.GetListing(ctx, "a2")
		if err != nil {
			t.Fatalf("get listing: %v", err)
		}
		if listing == nil || listing.Title != "2BR in a2" {
			t.Fatalf("listing mismatch: %+v", listing)
		}

		missing, err := store.GetListing(ctx, "nope")
		if err != nil {
			t.Fatalf("get missing listing: %v", err)
		}
		if missing != nil {
			t.Fatalf("expected nil for unknown id, got %+v", missing)
		}
	})
}

func TestStore_StaleEntries(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		if err := store.Put(ctx, testEntry("old", now.Add(-48*time.Hour), "a1")); err != nil {
			t.Fatalf("put old: %v", err)
		}
		if err := store.Put(ctx, testEntry("older", now.Add(-72*time.Hour), "a2")); err != nil {
			t.Fatalf("put older: %v", err)
		}
		if err := store.Put(ctx, testEntry("fresh", now, "a3")); err != nil {
			t.Fatalf("put fresh: %v", err)
		}

		stale, err := store.StaleEntries(ctx, now.Add(-24*time.Hour), 10)
		if err != nil {
			t.Fatalf("stale entries: %v", err)
		}
		if len(stale) != 2 {
			t.Fatalf("expected 2 stale entries, got %d", len(stale))
		}
		// Most recently fetched first.
		if stale[0].Fingerprint != "old" || stale[1].Fingerprint != "older" {
			t.Fatalf("unexpected order: %s, %s", stale[0].Fingerprint, stale[1].Fingerprint)
		}

		limited, err := store.StaleEntries(ctx, now.Add(-24*time.Hour), 1)
		if err != nil {
			t.Fatalf("limited stale entries: %v", err)
		}
		if len(limited) != 1 || limited[0].Fingerprint != "old" {
			t.Fatalf("limit not applied: %+v", limited)
		}
	})
}

func TestStore_PurgeExpired(t *testing.T) {
	withStores(t, func(t *testing.T, store CacheStore) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		if err := store.Put(ctx, testEntry("old", now.Add(-72*time.Hour), "a1")); err != nil {
			t.Fatalf("put old: %v", err)
		}
		if err := store.Put(ctx, testEntry("fresh", now, "a2")); err != nil {
			t.Fatalf("put fresh: %v", err)
		}

		purged, err := store.PurgeExpired(ctx, now.Add(-48*time.Hour))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if purged != 1 {
			t.Fatalf("expected 1 purged row, got %d", purged)
		}

		gone, err := store.Lookup(ctx, "old")
		if err != nil {
			t.Fatalf("lookup purged: %v", err)
		}
		if gone != nil {
			t.Fatal("purged entry still present")
		}
		kept, err := store.Lookup(ctx, "fresh")
		if err != nil {
			t.Fatalf("lookup kept: %v", err)
		}
		if kept == nil {
			t.Fatal("fresh entry was purged")
		}
	})
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, testEntry("fp1", time.Now(), "a1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, err := store.Lookup(ctx, "fp1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	entry.Listings[0].Title = "mutated"

	again, err := store.Lookup(ctx, "fp1")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if again.Listings[0].Title == "mutated" {
		t.Fatal("caller mutation leaked into the store")
	}
}
