package models

import "encoding/json"

type TransactionType string

const (
	TransactionSale TransactionType = "sale"
	TransactionRent TransactionType = "rent"
)

// PropertyTypeAny is the canonical sentinel for an unconstrained property
// type. An absent type and an explicit "any" must hash identically, so the
// normalizer folds both onto this value.
const PropertyTypeAny = "any"

// SearchCriteria is a structured search request as produced by a caller or
// by the interpretation agent. Optional numeric constraints are pointers:
// nil means "no constraint", which keeps an explicit 0-bedroom (studio)
// search expressible.
type SearchCriteria struct {
	Location        string          `json:"location"`
	PropertyType    string          `json:"property_type,omitempty"`
	TransactionType TransactionType `json:"transaction_type,omitempty"`
	MinPrice        *int64          `json:"min_price,omitempty"`
	MaxPrice        *int64          `json:"max_price,omitempty"`
	Bedrooms        *int            `json:"bedrooms,omitempty"`
	Bathrooms       *int            `json:"bathrooms,omitempty"`
}

// NormalizedCriteria is the canonical form of SearchCriteria, produced only
// by identity.Normalize. Field values are lowercased and trimmed, absent
// constraints are folded onto fixed sentinels, and no-op bounds are dropped,
// so two semantically equal requests always serialize identically.
type NormalizedCriteria struct {
	Location        string          `json:"location"`
	PropertyType    string          `json:"property_type"`
	TransactionType TransactionType `json:"transaction_type"`
	MinPrice        int64           `json:"min_price"` // 0 = unbounded
	MaxPrice        int64           `json:"max_price"` // 0 = unbounded
	Bedrooms        int             `json:"bedrooms"`  // -1 = any
	Bathrooms       int             `json:"bathrooms"` // -1 = any
}

func (n NormalizedCriteria) Snapshot() json.RawMessage {
	data, _ := json.Marshal(n)
	return data
}

// HasPropertyType reports whether the criteria constrain the property type.
func (n NormalizedCriteria) HasPropertyType() bool {
	return n.PropertyType != "" && n.PropertyType != PropertyTypeAny
}
