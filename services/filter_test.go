package services

import (
	"fmt"
	"reflect"
	"testing"

	"propsearch/identity"
	"propsearch/models"
)

func marinaListings() []models.RawListing {
	var listings []models.RawListing
	for i := 0; i < 7; i++ {
		listings = append(listings, models.RawListing{
			ID:           fmt.Sprintf("apt-%d", i),
			PropertyType: "Apartment",
			Price:        1000000 + int64(i)*100000,
			Rooms:        2,
			Baths:        2,
			Purpose:      "residential-for-sale",
		})
	}
	for i := 0; i < 3; i++ {
		listings = append(listings, models.RawListing{
			ID:           fmt.Sprintf("villa-%d", i),
			PropertyType: "Villa",
			Price:        1500000,
			Rooms:        4,
			Baths:        4,
			Purpose:      "residential-for-sale",
		})
	}
	return listings
}

func mustNormalize(t *testing.T, c models.SearchCriteria) models.NormalizedCriteria {
	t.Helper()
	n, err := identity.Normalize(c)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return n
}

// The raw fetch can include listings violating the requested property type;
// the filter is the compensating control.
func TestFilterListings_RemovesWrongPropertyType(t *testing.T) {
	maxPrice := int64(2000000)
	n := mustNormalize(t, models.SearchCriteria{
		Location:     "Dubai Marina",
		PropertyType: "apartment",
		MaxPrice:     &maxPrice,
	})

	filtered := FilterListings(n, marinaListings(), MatchExact)
	if len(filtered) != 7 {
		t.Fatalf("expected 7 apartments, got %d", len(filtered))
	}
	for _, listing := range filtered {
		if listing.PropertyType != "Apartment" {
			t.Fatalf("villa leaked through the filter: %s", listing.ID)
		}
	}
}

func TestFilterListings_Idempotent(t *testing.T) {
	n := mustNormalize(t, models.SearchCriteria{Location: "Dubai Marina", PropertyType: "apartment"})
	listings := marinaListings()

	once := FilterListings(n, listings, MatchExact)
	twice := FilterListings(n, once, MatchExact)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter is not idempotent: %d then %d listings", len(once), len(twice))
	}
}

func TestFilterListings_PriceBoundsInclusive(t *testing.T) {
	minPrice, maxPrice := int64(1000000), int64(1500000)
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr", MinPrice: &minPrice, MaxPrice: &maxPrice})

	listings := []models.RawListing{
		{ID: "below", Price: 999999},
		{ID: "at-min", Price: 1000000},
		{ID: "mid", Price: 1200000},
		{ID: "at-max", Price: 1500000},
		{ID: "above", Price: 1500001},
	}

	filtered := FilterListings(n, listings, MatchExact)
	if len(filtered) != 3 {
		t.Fatalf("expected 3 listings in bounds, got %d", len(filtered))
	}
	if filtered[0].ID != "at-min" || filtered[2].ID != "at-max" {
		t.Fatalf("inclusive bounds violated: %s .. %s", filtered[0].ID, filtered[2].ID)
	}
}

func TestFilterListings_MissingBoundIsUnbounded(t *testing.T) {
	maxPrice := int64(1000000)
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr", MaxPrice: &maxPrice})

	listings := []models.RawListing{
		{ID: "free", Price: 0},
		{ID: "cheap", Price: 1},
		{ID: "pricey", Price: 2000000},
	}
	filtered := FilterListings(n, listings, MatchExact)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 listings under max, got %d", len(filtered))
	}
}

func TestFilterListings_BedroomModes(t *testing.T) {
	beds := 3
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr", Bedrooms: &beds})

	listings := []models.RawListing{
		{ID: "two", Rooms: 2},
		{ID: "three", Rooms: 3},
		{ID: "four", Rooms: 4},
	}

	exact := FilterListings(n, listings, MatchExact)
	if len(exact) != 1 || exact[0].ID != "three" {
		t.Fatalf("exact mode: expected only the 3-bed listing, got %v", exact)
	}

	atLeast := FilterListings(n, listings, MatchAtLeast)
	if len(atLeast) != 2 {
		t.Fatalf("min mode: expected 2 listings, got %d", len(atLeast))
	}
}

func TestFilterListings_TransactionType(t *testing.T) {
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr", TransactionType: models.TransactionRent})

	listings := []models.RawListing{
		{ID: "rent", Purpose: "residential-for-rent"},
		{ID: "sale", Purpose: "residential-for-sale"},
		{ID: "unknown", Purpose: ""}, // missing purpose always passes
	}
	filtered := FilterListings(n, listings, MatchExact)
	if len(filtered) != 2 {
		t.Fatalf("expected rent + unknown, got %d listings", len(filtered))
	}
	if filtered[0].ID != "rent" || filtered[1].ID != "unknown" {
		t.Fatalf("unexpected listings: %s, %s", filtered[0].ID, filtered[1].ID)
	}
}

func TestFilterListings_AbsentConstraintsPassEverything(t *testing.T) {
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr"})
	listings := marinaListings()
	filtered := FilterListings(n, listings, MatchExact)
	if len(filtered) != len(listings) {
		t.Fatalf("expected all %d listings, got %d", len(listings), len(filtered))
	}
}

func TestFilterListings_PreservesOrderAndInput(t *testing.T) {
	n := mustNormalize(t, models.SearchCriteria{Location: "jbr", PropertyType: "apartment"})
	listings := marinaListings()
	snapshot := append([]models.RawListing(nil), listings...)

	filtered := FilterListings(n, listings, MatchExact)
	if !reflect.DeepEqual(listings, snapshot) {
		t.Fatalf("input slice was mutated")
	}
	for i := 1; i < len(filtered); i++ {
		if filtered[i-1].ID >= filtered[i].ID {
			t.Fatalf("input order not preserved: %s before %s", filtered[i-1].ID, filtered[i].ID)
		}
	}
}
