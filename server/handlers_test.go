package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"propsearch/agent"
	"propsearch/config"
	"propsearch/models"
	"propsearch/scraper"
	"propsearch/services"
	"propsearch/storage"
)

type stubFetcher struct {
	listings []models.RawListing
	err      error
}

func (f *stubFetcher) FetchListings(ctx context.Context, n models.NormalizedCriteria) ([]models.RawListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func newTestServer(t *testing.T, fetcher *stubFetcher) (*httptest.Server, storage.CacheStore) {
	t.Helper()

	cfg := &config.Config{Port: 0, CacheTTL: time.Hour, MatchMode: "exact"}
	store := storage.NewMemoryStore()
	search := services.NewSearchService(store, fetcher, cfg.CacheTTL, services.MatchExact)
	ag := agent.New(cfg.LLM, nil, search.Search)
	sc := scraper.NewClient(&cfg.Portal, nil)

	srv := httptest.NewServer(New(cfg, search, ag, sc, store).Handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHandleSearch(t *testing.T) {
	fetcher := &stubFetcher{listings: []models.RawListing{
		{ID: "a1", PropertyType: "apartment", Price: 1200000, Purpose: "residential-for-sale"},
		{ID: "v1", PropertyType: "villa", Price: 1200000, Purpose: "residential-for-sale"},
	}}
	srv, _ := newTestServer(t, fetcher)

	resp, err := http.Get(srv.URL + "/api/search?location=Dubai+Marina&property_type=apartment&max_price=2000000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("expected 1 filtered listing, got %v", body["count"])
	}
	if body["total_fetched"].(float64) != 2 {
		t.Fatalf("expected total_fetched 2, got %v", body["total_fetched"])
	}
	if body["provenance"] != string(models.ProvenanceRefreshed) {
		t.Fatalf("expected cache_miss_refreshed, got %v", body["provenance"])
	}

	// Same criteria again: served from cache.
	resp, err = http.Get(srv.URL + "/api/search?location=dubai+marina&property_type=Apartment&max_price=2000000")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	body = decodeBody(t, resp)
	if body["provenance"] != string(models.ProvenanceCacheHit) {
		t.Fatalf("expected cache_hit, got %v", body["provenance"])
	}
}

func TestHandleSearch_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{})

	for name, query := range map[string]string{
		"missing location": "property_type=villa",
		"bad number":       "location=jbr&min_price=abc",
		"inverted bounds":  "location=jbr&min_price=500&max_price=100",
	} {
		resp, err := http.Get(srv.URL + "/api/search?" + query)
		if err != nil {
			t.Fatalf("%s: get: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestHandleSearch_UpstreamFailure(t *testing.T) {
	fetcher := &stubFetcher{err: &models.FetchError{Stage: "listings", Err: errors.New("portal down")}}
	srv, _ := newTestServer(t, fetcher)

	resp, err := http.Get(srv.URL + "/api/search?location=jbr")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
	listings, ok := body["listings"].([]any)
	if !ok || len(listings) != 0 {
		t.Fatalf("expected empty listings array, got %v", body["listings"])
	}
}

func TestHandleProperty(t *testing.T) {
	srv, store := newTestServer(t, &stubFetcher{})

	err := store.Put(context.Background(), &models.CacheEntry{
		Fingerprint: "fp1",
		Listings:    []models.RawListing{{ID: "a1", Title: "2BR Marina View"}},
		FetchedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/properties/a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	var listing models.RawListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Title != "2BR Marina View" {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	missing, err := http.Get(srv.URL + "/api/properties/unknown")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}

func TestHandleAsk_RequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{})

	for _, payload := range []string{`{}`, `{"query": "   "}`, `not json`} {
		resp, err := http.Post(srv.URL+"/api/ask", "application/json", bytes.NewBufferString(payload))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, resp.StatusCode)
		}
	}
}

func TestHandleAsk_AgentUnavailable(t *testing.T) {
	// No LLM_API_KEY configured: the endpoint degrades to an error payload.
	srv, _ := newTestServer(t, &stubFetcher{})

	resp, err := http.Post(srv.URL+"/api/ask", "application/json", bytes.NewBufferString(`{"query": "villas in jbr"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
}
