package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Portal *http.Client // portal fetches: short timeout
	API    *http.Client // LLM API calls: completions can be slow
}

func NewClients() *Clients {
	return &Clients{
		Portal: &http.Client{Timeout: 15 * time.Second},
		API:    &http.Client{Timeout: 90 * time.Second},
	}
}
