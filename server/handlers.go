package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"propsearch/models"
)

// handleSearch runs a structured search. Upstream failures return an empty
// listing array plus an error indicator, never a crash.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.search.Search(r.Context(), criteria)
	if err != nil {
		var invalid *models.InvalidCriteriaError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log.Printf("Search failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":  false,
			"error":    err.Error(),
			"listings": []models.RawListing{},
			"count":    0,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"count":             result.Count(),
		"total_fetched":     result.TotalFetched,
		"provenance":        result.Provenance,
		"entry_age_seconds": int64(result.EntryAge.Seconds()),
		"listings":          result.Listings,
	})
}

func criteriaFromQuery(r *http.Request) (models.SearchCriteria, error) {
	q := r.URL.Query()
	criteria := models.SearchCriteria{
		Location:        q.Get("location"),
		PropertyType:    q.Get("property_type"),
		TransactionType: models.TransactionType(q.Get("transaction_type")),
	}
	if criteria.Location == "" {
		criteria.Location = q.Get("query")
	}

	var err error
	if criteria.MinPrice, err = int64Param(q.Get("min_price"), "min_price"); err != nil {
		return criteria, err
	}
	if criteria.MaxPrice, err = int64Param(q.Get("max_price"), "max_price"); err != nil {
		return criteria, err
	}
	if criteria.Bedrooms, err = intParam(q.Get("bedrooms"), "bedrooms"); err != nil {
		return criteria, err
	}
	if criteria.Bathrooms, err = intParam(q.Get("bathrooms"), "bathrooms"); err != nil {
		return criteria, err
	}
	return criteria, nil
}

func int64Param(val, name string) (*int64, error) {
	if val == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return nil, &models.InvalidCriteriaError{Field: name, Reason: "not a number"}
	}
	return &n, nil
}

func intParam(val, name string) (*int, error) {
	if val == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return nil, &models.InvalidCriteriaError{Field: name, Reason: "not a number"}
	}
	return &n, nil
}

// handleAsk answers a natural-language query through the interpretation
// agent, which calls the search facade as a tool.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query is required"})
		return
	}

	answer, err := s.agent.Ask(r.Context(), strings.TrimSpace(body.Query))
	if err != nil {
		log.Printf("Agent query failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":  false,
			"error":    err.Error(),
			"listings": []models.RawListing{},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"query":           body.Query,
		"ai_response":     answer.Reply,
		"tool_calls_made": answer.ToolCalls,
		"listings":        answer.Listings,
		"count":           len(answer.Listings),
	})
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	listing, err := s.store.GetListing(r.Context(), id)
	if err != nil {
		log.Printf("Listing lookup failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if listing == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "property not found in cache"})
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query is required"})
		return
	}

	locations, err := s.scraper.SearchLocations(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"input":     map[string]string{"query": query},
		"locations": locations,
	})
}

type rawFilterBody struct {
	Filters struct {
		Location     string `json:"location"`
		PropertyType string `json:"property_type"`
		Purpose      string `json:"purpose"`
		LocationID   string `json:"location_id"`
	} `json:"filters"`
	BuildID string `json:"build_id"`
}

func (s *Server) handleBuildID(w http.ResponseWriter, r *http.Request) {
	var body rawFilterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	n := diagnosticCriteria(&body)
	buildID, err := s.scraper.DiscoverBuildID(r.Context(), n, body.Filters.LocationID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"input":    body.Filters,
		"build_id": buildID,
	})
}

// handleRawListings fetches straight from the portal without cache or
// filter. Diagnostics only; real searches go through /api/search.
func (s *Server) handleRawListings(w http.ResponseWriter, r *http.Request) {
	var body rawFilterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	n := diagnosticCriteria(&body)
	buildID := body.BuildID
	var err error
	if buildID == "" {
		if buildID, err = s.scraper.DiscoverBuildID(r.Context(), n, body.Filters.LocationID); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
	}

	listings, err := s.scraper.FetchPage(r.Context(), buildID, n, body.Filters.LocationID, 1)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"input":    body.Filters,
		"count":    len(listings),
		"listings": listings,
	})
}

func diagnosticCriteria(body *rawFilterBody) models.NormalizedCriteria {
	txn := models.TransactionSale
	if strings.EqualFold(body.Filters.Purpose, string(models.TransactionRent)) {
		txn = models.TransactionRent
	}
	propertyType := strings.ToLower(strings.TrimSpace(body.Filters.PropertyType))
	if propertyType == "" {
		propertyType = models.PropertyTypeAny
	}
	return models.NormalizedCriteria{
		Location:        strings.ToLower(strings.TrimSpace(body.Filters.Location)),
		PropertyType:    propertyType,
		TransactionType: txn,
		Bedrooms:        -1,
		Bathrooms:       -1,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}
