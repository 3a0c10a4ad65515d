package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"propsearch/models"
)

// Location is one suggestion from the portal's location API.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// The locations API has shipped two shapes: data as a flat array of
// locations, and data as an object whose attributes hold the array. Both
// are handled.
func parseLocations(data []byte) ([]Location, error) {
	var flat struct {
		Data []Location `json:"data"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && len(flat.Data) > 0 {
		return flat.Data, nil
	}

	var nested struct {
		Data struct {
			Attributes []Location `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	return nested.Data.Attributes, nil
}

// parseBuildID extracts the Next.js buildId from a search page's
// __NEXT_DATA__ script tag.
func parseBuildID(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse search page: %w", err)
	}

	script := doc.Find(`script#__NEXT_DATA__`).First()
	if script.Length() == 0 {
		return "", fmt.Errorf("no __NEXT_DATA__ script in search page")
	}

	var next struct {
		BuildID string `json:"buildId"`
	}
	if err := json.Unmarshal([]byte(script.Text()), &next); err != nil {
		return "", fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}
	if next.BuildID == "" {
		return "", fmt.Errorf("__NEXT_DATA__ has no buildId")
	}
	return next.BuildID, nil
}

type searchDataResponse struct {
	PageProps struct {
		SearchResult struct {
			Listings []portalListing `json:"listings"`
		} `json:"searchResult"`
	} `json:"pageProps"`
}

type portalListing struct {
	ListingType string `json:"listing_type"`
	Property    struct {
		ID    json.Number `json:"id"`
		Title string      `json:"title"`
		Price struct {
			Value int64 `json:"value"`
		} `json:"price"`
		Size struct {
			Value float64 `json:"value"`
		} `json:"size"`
		Bedrooms     int    `json:"bedrooms_value"`
		Bathrooms    int    `json:"bathrooms_value"`
		OfferingType string `json:"offering_type"`
		PropertyType string `json:"property_type"`
		Completion   string `json:"completion_status"`
		Location     struct {
			FullName    string `json:"full_name"`
			Coordinates struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"coordinates"`
		} `json:"location"`
		Images []struct {
			Medium string `json:"medium"`
		} `json:"images"`
		Broker struct {
			Name string `json:"name"`
		} `json:"broker"`
		Agent struct {
			Name string `json:"name"`
		} `json:"agent"`
		ContactOptions []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"contact_options"`
		OffplanDetails struct {
			PaymentPlan struct {
				DownPaymentPercentage float64 `json:"downPaymentPercentage"`
			} `json:"payment_plan"`
		} `json:"offplan_details"`
	} `json:"property"`
}

// parseListings decodes a data endpoint response and maps every property
// listing onto the cache schema. Non-property entries (ads, projects) are
// skipped, as are listings without an id.
func parseListings(data []byte) ([]models.RawListing, error) {
	var resp searchDataResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}

	var listings []models.RawListing
	for i := range resp.PageProps.SearchResult.Listings {
		pl := &resp.PageProps.SearchResult.Listings[i]
		if pl.ListingType != "property" {
			continue
		}
		listing := mapListing(pl)
		if listing.ID == "" {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func mapListing(pl *portalListing) models.RawListing {
	p := &pl.Property

	var images []string
	for _, img := range p.Images {
		if img.Medium != "" {
			images = append(images, img.Medium)
		}
	}
	cover := ""
	if len(images) > 0 {
		cover = images[0]
	}

	var mobile, whatsapp string
	for _, contact := range p.ContactOptions {
		switch contact.Type {
		case "phone":
			mobile = contact.Value
		case "whatsapp":
			whatsapp = contact.Value
		}
	}

	raw, _ := json.Marshal(pl)

	return models.RawListing{
		ID:                 p.ID.String(),
		Title:              p.Title,
		Price:              p.Price.Value,
		Area:               int(p.Size.Value),
		Rooms:              p.Bedrooms,
		Baths:              p.Bathrooms,
		Purpose:            p.OfferingType,
		PropertyType:       p.PropertyType,
		CompletionStatus:   p.Completion,
		Latitude:           p.Location.Coordinates.Lat,
		Longitude:          p.Location.Coordinates.Lon,
		LocationName:       p.Location.FullName,
		CoverPhotoURL:      cover,
		ImageURLs:          images,
		AgencyName:         p.Broker.Name,
		ContactName:        p.Agent.Name,
		MobileNumber:       mobile,
		WhatsappNumber:     whatsapp,
		DownPaymentPercent: p.OffplanDetails.PaymentPlan.DownPaymentPercentage,
		Data:               raw,
	}
}
