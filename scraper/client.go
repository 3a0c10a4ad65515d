package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"propsearch/config"
	"propsearch/models"
)

// Client talks to the property portal's public endpoints: the location
// suggestion API, the search page (for Next.js buildId discovery) and the
// Next.js data endpoint that serves listing JSON. All failures surface as
// *models.FetchError.
type Client struct {
	cfg    *config.PortalConfig
	client *http.Client
}

func NewClient(cfg *config.PortalConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, client: client}
}

// FetchListings resolves the location, discovers the current buildId and
// pages through the portal's results. It implements services.Fetcher.
//
// Price bounds are deliberately never sent upstream: the portal ignores
// them, and even property type is not reliably honored. The caller filters
// client-side.
func (c *Client) FetchListings(ctx context.Context, n models.NormalizedCriteria) ([]models.RawListing, error) {
	locationID, err := c.ResolveLocation(ctx, n.Location)
	if err != nil {
		return nil, err
	}
	if locationID == "" {
		log.Printf("Scraper: no location id for %q, searching portal-wide", n.Location)
	}

	buildID, err := c.DiscoverBuildID(ctx, n, locationID)
	if err != nil {
		return nil, err
	}

	var all []models.RawListing
	seen := make(map[string]bool)
	for page := 1; page <= c.cfg.MaxPages; page++ {
		listings, err := c.FetchPage(ctx, buildID, n, locationID, page)
		if err != nil {
			return nil, err
		}
		if len(listings) == 0 {
			break
		}

		added := 0
		for _, listing := range listings {
			if listing.ID == "" || seen[listing.ID] {
				continue
			}
			seen[listing.ID] = true
			all = append(all, listing)
			added++
		}
		log.Printf("Scraper: page %d: %d listings (%d new, total %d)", page, len(listings), added, len(all))

		if c.cfg.RateLimitMS > 0 && page < c.cfg.MaxPages {
			select {
			case <-time.After(time.Duration(c.cfg.RateLimitMS) * time.Millisecond):
			case <-ctx.Done():
				return nil, &models.FetchError{Stage: "pagination", Err: ctx.Err()}
			}
		}
	}

	return all, nil
}

// SearchLocations queries the portal's location suggestion API.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]Location, error) {
	params := url.Values{}
	params.Set("locale", "en")
	params.Set("filters.name", query)
	params.Set("pagination.limit", "20")

	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.LocationsPath, params, false)
	if err != nil {
		return nil, &models.FetchError{Stage: "locations", Err: err}
	}

	locations, err := parseLocations(body)
	if err != nil {
		return nil, &models.FetchError{Stage: "locations", Err: err}
	}
	return locations, nil
}

// ResolveLocation returns the portal's internal id for a location name, or
// "" when the portal has no suggestion for it.
func (c *Client) ResolveLocation(ctx context.Context, query string) (string, error) {
	locations, err := c.SearchLocations(ctx, query)
	if err != nil {
		return "", err
	}
	for _, loc := range locations {
		if loc.ID != "" {
			return loc.ID, nil
		}
	}
	return "", nil
}

// DiscoverBuildID fetches the search page and extracts the Next.js buildId
// embedded in its __NEXT_DATA__ script tag. The id rotates with portal
// deploys, so it is discovered per fetch rather than configured.
func (c *Client) DiscoverBuildID(ctx context.Context, n models.NormalizedCriteria, locationID string) (string, error) {
	params := url.Values{}
	params.Set("c", transactionParam(n.TransactionType))
	if n.HasPropertyType() {
		if id, ok := c.cfg.PropertyTypes[n.PropertyType]; ok {
			params.Set("t", id)
		}
	}
	if locationID != "" {
		params.Set("l", locationID)
	}

	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.SearchPath, params, true)
	if err != nil {
		return "", &models.FetchError{Stage: "build_id", Err: err}
	}

	buildID, err := parseBuildID(body)
	if err != nil {
		return "", &models.FetchError{Stage: "build_id", Err: err}
	}
	return buildID, nil
}

// FetchPage fetches one page of listings from the Next.js data endpoint.
func (c *Client) FetchPage(ctx context.Context, buildID string, n models.NormalizedCriteria, locationID string, page int) ([]models.RawListing, error) {
	if buildID == "" {
		return nil, &models.FetchError{Stage: "listings", Err: fmt.Errorf("missing build id")}
	}

	params := url.Values{}
	params.Set("ob", "mr")
	params.Set("fu", "0")
	params.Set("c", transactionParam(n.TransactionType))
	if n.HasPropertyType() {
		if id, ok := c.cfg.PropertyTypes[n.PropertyType]; ok {
			params.Set("t", id)
		}
	}
	if locationID != "" {
		params.Set("l", locationID)
	}
	if n.Bedrooms >= 0 {
		params.Set("filter[number_of_bedrooms]", fmt.Sprintf("%d", n.Bedrooms))
	}
	if n.Bathrooms >= 0 {
		params.Set("filter[number_of_bathrooms]", fmt.Sprintf("%d", n.Bathrooms))
	}
	if page > 1 {
		params.Set("page[number]", fmt.Sprintf("%d", page))
	}

	endpoint := c.cfg.BaseURL + fmt.Sprintf(c.cfg.DataPath, buildID)
	body, err := c.get(ctx, endpoint, params, true)
	if err != nil {
		return nil, &models.FetchError{Stage: "listings", Err: err}
	}

	listings, err := parseListings(body)
	if err != nil {
		return nil, &models.FetchError{Stage: "listings", Err: err}
	}
	return listings, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, nextHeaders bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if nextHeaders {
		req.Header.Set("x-nextjs-data", "1")
		req.Header.Set("Referer", c.cfg.Referer)
		req.Header.Set("sec-fetch-dest", "empty")
		req.Header.Set("sec-fetch-mode", "cors")
		req.Header.Set("sec-fetch-site", "same-origin")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("portal returned %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func transactionParam(t models.TransactionType) string {
	if t == models.TransactionRent {
		return "2"
	}
	return "1"
}
