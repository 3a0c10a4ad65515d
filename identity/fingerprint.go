package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"propsearch/models"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Normalize canonicalizes a search request. Free-text fields are lowercased
// and trimmed, absent constraints collapse onto fixed sentinels, and no-op
// bounds are dropped, so any two semantically equal requests produce the
// same NormalizedCriteria regardless of construction order, casing or
// whitespace. Deterministic and side-effect-free.
func Normalize(c models.SearchCriteria) (models.NormalizedCriteria, error) {
	location := NormalizeLocation(c.Location)
	if location == "" {
		return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "location", Reason: "must not be empty"}
	}

	propertyType := strings.ToLower(strings.TrimSpace(c.PropertyType))
	if propertyType == "" {
		propertyType = models.PropertyTypeAny
	}

	txn := models.TransactionType(strings.ToLower(strings.TrimSpace(string(c.TransactionType))))
	switch txn {
	case "":
		txn = models.TransactionSale
	case models.TransactionSale, models.TransactionRent:
	default:
		return models.NormalizedCriteria{}, &models.InvalidCriteriaError{
			Field:  "transaction_type",
			Reason: fmt.Sprintf("must be %q or %q", models.TransactionSale, models.TransactionRent),
		}
	}

	var minPrice, maxPrice int64
	if c.MinPrice != nil {
		if *c.MinPrice < 0 {
			return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "min_price", Reason: "must not be negative"}
		}
		minPrice = *c.MinPrice // min_price = 0 is a no-op bound and stays 0
	}
	if c.MaxPrice != nil {
		if *c.MaxPrice < 0 {
			return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "max_price", Reason: "must not be negative"}
		}
		maxPrice = *c.MaxPrice
	}
	if minPrice > 0 && maxPrice > 0 && minPrice > maxPrice {
		return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "min_price", Reason: "greater than max_price"}
	}

	bedrooms := -1
	if c.Bedrooms != nil {
		if *c.Bedrooms < 0 {
			return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "bedrooms", Reason: "must not be negative"}
		}
		bedrooms = *c.Bedrooms
	}
	bathrooms := -1
	if c.Bathrooms != nil {
		if *c.Bathrooms < 0 {
			return models.NormalizedCriteria{}, &models.InvalidCriteriaError{Field: "bathrooms", Reason: "must not be negative"}
		}
		bathrooms = *c.Bathrooms
	}

	return models.NormalizedCriteria{
		Location:        location,
		PropertyType:    propertyType,
		TransactionType: txn,
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		Bedrooms:        bedrooms,
		Bathrooms:       bathrooms,
	}, nil
}

// Fingerprint derives the cache key for normalized criteria: the hex of the
// first 16 bytes of a sha256 over a fixed field ordering.
func Fingerprint(n models.NormalizedCriteria) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d",
		n.Location,
		n.PropertyType,
		n.TransactionType,
		n.MinPrice,
		n.MaxPrice,
		n.Bedrooms,
		n.Bathrooms,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeLocation lowercases a free-text location, strips punctuation and
// collapses runs of whitespace, so "Dubai Marina", "DUBAI MARINA" and
// " dubai  marina , " all canonicalize to "dubai marina".
func NormalizeLocation(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	loc = nonAlnumRegex.ReplaceAllString(loc, " ")
	loc = multiSpaceRegex.ReplaceAllString(loc, " ")
	return strings.TrimSpace(loc)
}
