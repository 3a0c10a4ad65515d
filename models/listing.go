package models

import "encoding/json"

// RawListing is a single listing as returned by the portal scraper, mapped
// onto the cache schema. The constraint filter only inspects Price, Rooms,
// Baths, Purpose and PropertyType; everything else is carried opaquely.
type RawListing struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Price              int64    `json:"price"`
	Area               int      `json:"area"`
	Rooms              int      `json:"rooms"`
	Baths              int      `json:"baths"`
	Purpose            string   `json:"purpose"`
	PropertyType       string   `json:"property_type"`
	CompletionStatus   string   `json:"completion_status,omitempty"`
	Latitude           float64  `json:"latitude,omitempty"`
	Longitude          float64  `json:"longitude,omitempty"`
	LocationName       string   `json:"location_name"`
	CoverPhotoURL      string   `json:"cover_photo_url,omitempty"`
	ImageURLs          []string `json:"all_image_urls,omitempty"`
	AgencyName         string   `json:"agency_name,omitempty"`
	ContactName        string   `json:"contact_name,omitempty"`
	MobileNumber       string   `json:"mobile_number,omitempty"`
	WhatsappNumber     string   `json:"whatsapp_number,omitempty"`
	DownPaymentPercent float64  `json:"down_payment_percentage,omitempty"`

	// Data is the unmapped portal JSON for this listing.
	Data json.RawMessage `json:"-"`
}
