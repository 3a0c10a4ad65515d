package services

import (
	"strings"

	"propsearch/models"
)

// MatchMode selects how bedroom/bathroom constraints compare: the portal's
// own semantics are ambiguous, so both readings are supported.
type MatchMode string

const (
	MatchExact   MatchMode = "exact"
	MatchAtLeast MatchMode = "min"
)

// FilterListings re-applies the requested constraints to a raw listing set.
// The portal does not reliably honor its own query parameters (property
// type in particular), so this makes no assumption that the input already
// satisfies the criteria it was fetched with.
//
// Pure function over (criteria, listings): its output never depends on
// whether the listings came from cache or a live fetch. A listing passes
// only if every present constraint matches; absent constraints always pass.
// Input order is preserved and the input slice is never mutated.
func FilterListings(n models.NormalizedCriteria, listings []models.RawListing, mode MatchMode) []models.RawListing {
	filtered := make([]models.RawListing, 0, len(listings))
	for _, listing := range listings {
		if matches(n, &listing, mode) {
			filtered = append(filtered, listing)
		}
	}
	return filtered
}

func matches(n models.NormalizedCriteria, listing *models.RawListing, mode MatchMode) bool {
	if n.HasPropertyType() {
		if !strings.EqualFold(strings.TrimSpace(listing.PropertyType), n.PropertyType) {
			return false
		}
	}

	// Inclusive bounds; a missing bound is unbounded on that side.
	if n.MinPrice > 0 && listing.Price < n.MinPrice {
		return false
	}
	if n.MaxPrice > 0 && listing.Price > n.MaxPrice {
		return false
	}

	if n.Bedrooms >= 0 && !countMatches(listing.Rooms, n.Bedrooms, mode) {
		return false
	}
	if n.Bathrooms >= 0 && !countMatches(listing.Baths, n.Bathrooms, mode) {
		return false
	}

	if n.TransactionType != "" {
		purpose := strings.ToLower(listing.Purpose)
		if purpose != "" && !strings.Contains(purpose, string(n.TransactionType)) {
			return false
		}
	}

	return true
}

func countMatches(have, want int, mode MatchMode) bool {
	if mode == MatchAtLeast {
		return have >= want
	}
	return have == want
}
